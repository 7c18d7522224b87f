package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/storefront/internal/models"
)

func ids(list []models.Product) []int {
	out := make([]int, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()

	list := DefaultProducts()
	minP, maxP := 40.0, 90.0
	yes := true

	tests := []struct {
		name string
		q    Query
		want []int
	}{
		{name: "empty query keeps order", q: Query{}, want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		{name: "text matches name case-insensitively", q: Query{Text: "SNEAK"}, want: []int{3}},
		{name: "text matches category", q: Query{Text: "jewel"}, want: []int{6, 7, 8}},
		{name: "text OR over name and category", q: Query{Text: "women"}, want: []int{4, 5}},
		{name: "category by name", q: Query{Category: "electronics"}, want: []int{9, 10, 11, 12}},
		{name: "category by slug", q: Query{Category: "men-s-clothing"}, want: []int{1, 2, 3}},
		{name: "category by id", q: Query{Category: "3"}, want: []int{6, 7, 8}},
		{name: "category all", q: Query{Category: "all"}, want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		{name: "category is exact", q: Query{Category: "electro"}, want: []int{}},
		{name: "price asc", q: Query{Category: "jewelery", Sort: SortPriceAsc}, want: []int{7, 6, 8}},
		{name: "price desc", q: Query{Category: "electronics", Sort: SortPriceDesc}, want: []int{10, 11, 12, 9}},
		{name: "unknown sort keeps order", q: Query{Category: "jewelery", Sort: "rating"}, want: []int{6, 7, 8}},
		{name: "price range", q: Query{MinPrice: &minP, MaxPrice: &maxP}, want: []int{2, 3, 4, 5, 9}},
		{name: "featured", q: Query{Featured: &yes}, want: []int{3, 8, 10}},
		{name: "no match", q: Query{Text: "zzz"}, want: []int{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ids(Filter(list, tt.q)))
		})
	}
}

func TestFilter_SortIsStable(t *testing.T) {
	t.Parallel()

	list := []models.Product{
		{ID: 1, Price: 10}, {ID: 2, Price: 5}, {ID: 3, Price: 10}, {ID: 4, Price: 5}, {ID: 5, Price: 10},
	}
	assert.Equal(t, []int{2, 4, 1, 3, 5}, ids(Filter(list, Query{Sort: SortPriceAsc})))
	assert.Equal(t, []int{1, 3, 5, 2, 4}, ids(Filter(list, Query{Sort: SortPriceDesc})))
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	list := DefaultProducts()
	_ = Filter(list, Query{Sort: SortPriceDesc})
	assert.Equal(t, 1, list[0].ID)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "men-s-clothing", Slugify("men's clothing"))
	assert.Equal(t, "scarpe-donna", Slugify("  Scarpe   DONNA "))
	assert.Equal(t, "città", Slugify("Città!"))
	assert.Equal(t, "", Slugify("---"))
}
