package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	FreeShippingOver = decimal.NewFromInt(50)
	ShippingFee      = decimal.RequireFromString("9.90")
	TaxRate          = decimal.RequireFromString("0.22")
)

// ComputeTotals prices a cart. Tax applies to the subtotal only; shipping is free strictly above
// the threshold.
func ComputeTotals(items []models.CartItem) models.Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Product.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := ShippingFee
	if subtotal.GreaterThan(FreeShippingOver) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	total := subtotal.Add(shipping).Add(tax)

	return models.Totals{
		Subtotal: subtotal.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    total.Round(2).InexactFloat64(),
	}
}
