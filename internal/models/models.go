package models

import (
	"time"
)

type Product struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	Category      string   `json:"category"`
	CategoryID    int      `json:"categoryId,omitempty"`
	Image         string   `json:"image,omitempty"`
	Stock         int      `json:"stock"`
	Featured      bool     `json:"featured,omitempty"`
	IsNew         bool     `json:"isNew,omitempty"`
	IsSale        bool     `json:"isSale,omitempty"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	Reviews       int      `json:"reviews,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"qty"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
	ParentID    *int   `json:"parentId,omitempty"`
	Image       string `json:"image,omitempty"`
	Active      bool   `json:"active"`
	SortOrder   int    `json:"sortOrder"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type Customer struct {
	Name       string `json:"nome"`
	Surname    string `json:"cognome,omitempty"`
	Email      string `json:"email"`
	Phone      string `json:"telefono"`
	Address    string `json:"indirizzo"`
	City       string `json:"citta"`
	PostalCode string `json:"cap"`
	Province   string `json:"provincia"`
	Notes      string `json:"note,omitempty"`
}

type OrderStatus string

const (
	OrderCompleted  OrderStatus = "completed"
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type PaymentDetails struct {
	PaymentID string    `json:"paymentId"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	PayerID   string    `json:"payerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Order struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId,omitempty"`
	Items     []CartItem     `json:"items"`
	Customer  Customer       `json:"customerData"`
	Totals    Totals         `json:"totals"`
	Payment   PaymentDetails `json:"paymentDetails"`
	CreatedAt time.Time      `json:"orderDate"`
	Status    OrderStatus    `json:"status"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`

	ShippedAt      *time.Time `json:"shippedDate,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredDate,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
}

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	Avatar    string     `json:"avatar,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	City      string     `json:"city,omitempty"`
	ZipCode   string     `json:"zipCode,omitempty"`
	Country   string     `json:"country,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
