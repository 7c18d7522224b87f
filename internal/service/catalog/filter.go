package catalog

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	SortNone      = ""
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"

	CategoryAll = "all"
)

type Query struct {
	Text     string
	Category string
	Sort     string

	MinPrice *float64
	MaxPrice *float64
	Featured *bool
}

// Filter never fails: unknown sort keys keep the input order and an empty
// or "all" category disables category filtering.
func Filter(list []models.Product, q Query) []models.Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	cat := strings.TrimSpace(q.Category)
	if strings.EqualFold(cat, CategoryAll) {
		cat = ""
	}

	out := make([]models.Product, 0, len(list))
	for _, p := range list {
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Category), text) {
			continue
		}
		if cat != "" && !MatchesCategory(p, cat) {
			continue
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			continue
		}
		if q.Featured != nil && p.Featured != *q.Featured {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	}
	return out
}

// MatchesCategory compares against the product's category name, its slug or its numeric id.
func MatchesCategory(p models.Product, ref string) bool {
	if ref == p.Category || ref == Slugify(p.Category) {
		return true
	}
	if id, err := strconv.Atoi(ref); err == nil && p.CategoryID != 0 {
		return id == p.CategoryID
	}
	return false
}

func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
