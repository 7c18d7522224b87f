package catalog

import (
	"github.com/Skotchmaster/storefront/internal/models"
)

func price(v float64) *float64 { return &v }

// DefaultProducts is the seeded catalog used until an admin saves overrides.
func DefaultProducts() []models.Product {
	return []models.Product{
		{ID: 1, Name: "T-Shirt Basic", Price: 19.90, Category: "men's clothing", CategoryID: 1, Stock: 50,
			Description: "T-shirt in cotone 100% a vestibilità regolare.", Image: "/assets/tshirt.jpg",
			Colors: []string{"#000000", "#ffffff", "#ff0000"}, IsNew: true},
		{ID: 2, Name: "Giacca Leggera", Price: 59.90, Category: "men's clothing", CategoryID: 1, Stock: 20,
			Description: "Giacca antivento leggera per la mezza stagione.", Image: "/assets/jacket.jpg",
			Colors: []string{"#000080", "#8B4513"}, OriginalPrice: price(79.90), IsSale: true},
		{ID: 3, Name: "Sneakers Urban", Price: 79.00, Category: "men's clothing", CategoryID: 1, Stock: 30,
			Description: "Sneakers comode per tutti i giorni.", Image: "/assets/sneakers.jpg",
			Colors: []string{"#ffffff", "#000000"}, Rating: 4.5, Reviews: 124, Featured: true},
		{ID: 4, Name: "Abito Elegante", Price: 89.00, Category: "women's clothing", CategoryID: 2, Stock: 15,
			Description: "Abito midi elegante per cerimonie e serate.", Image: "/assets/dress.jpg",
			Colors: []string{"#000000", "#8B008B", "#FF69B4"}, IsNew: true},
		{ID: 5, Name: "Borsa Tracolla", Price: 45.00, Category: "women's clothing", CategoryID: 2, Stock: 25,
			Description: "Borsa a tracolla capiente in eco-pelle.", Image: "/assets/bag.jpg",
			Colors: []string{"#8B4513", "#000000"}, OriginalPrice: price(65.00), IsSale: true},
		{ID: 6, Name: "Anello Minimal", Price: 29.00, Category: "jewelery", CategoryID: 3, Stock: 40,
			Description: "Anello minimalista in acciaio inox.", Image: "/assets/ring.jpg",
			Colors: []string{"#C0C0C0", "#FFD700"}},
		{ID: 7, Name: "Orecchini Perla", Price: 24.90, Category: "jewelery", CategoryID: 3, Stock: 35,
			Description: "Orecchini con perle sintetiche, chiusura a farfalla.", Image: "/assets/earrings.jpg",
			Colors: []string{"#FFFAF0", "#FFB6C1"}},
		{ID: 8, Name: "Orologio Classico", Price: 129.00, Category: "jewelery", CategoryID: 3, Stock: 10,
			Description: "Orologio da polso con cinturino in pelle.", Image: "/assets/watch.jpg",
			Colors: []string{"#8B4513", "#000000"}, Rating: 4.8, Reviews: 89, Featured: true},
		{ID: 9, Name: "Cuffie Over-Ear", Price: 59.00, Category: "electronics", CategoryID: 4, Stock: 18,
			Description: "Cuffie comode con buon isolamento acustico.", Image: "/assets/headphones.jpg",
			Colors: []string{"#000000", "#ffffff"}, Rating: 4.2, Reviews: 203},
		{ID: 10, Name: "Laptop 14\"", Price: 799.00, Category: "electronics", CategoryID: 4, Stock: 5,
			Description: "Portatile 14\" leggero e silenzioso per lavoro/studio.", Image: "/assets/laptop.jpg",
			Colors: []string{"#708090", "#000000"}, Featured: true},
		{ID: 11, Name: "Smartphone 6.1\"", Price: 499.00, Category: "electronics", CategoryID: 4, Stock: 12,
			Description: "Display 6.1\" e fotocamera doppia.", Image: "/assets/phone.jpg",
			Colors: []string{"#000000", "#ffffff", "#0000FF"}, IsNew: true, Rating: 4.6, Reviews: 156},
		{ID: 12, Name: "Fotocamera Compatta", Price: 349.00, Category: "electronics", CategoryID: 4, Stock: 8,
			Description: "Compatta con ottiche versatili per viaggi.", Image: "/assets/camera.jpg",
			Colors: []string{"#000000", "#C0C0C0"}, OriginalPrice: price(399.00), IsSale: true},
	}
}

func DefaultCategories() []models.Category {
	return []models.Category{
		{ID: 1, Name: "men's clothing", Slug: "men-s-clothing", Description: "Abbigliamento uomo", Active: true, SortOrder: 1},
		{ID: 2, Name: "women's clothing", Slug: "women-s-clothing", Description: "Abbigliamento donna", Active: true, SortOrder: 2},
		{ID: 3, Name: "jewelery", Slug: "jewelery", Description: "Gioielli e accessori", Active: true, SortOrder: 3},
		{ID: 4, Name: "electronics", Slug: "electronics", Description: "Elettronica", Active: true, SortOrder: 4},
	}
}
