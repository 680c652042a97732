// Package pricing computes order totals from unit prices and quantities.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the flat sales tax applied to every order.
var TaxRate = decimal.RequireFromString("0.07")

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Price returns subtotal, tax and total for lines. Amounts are rounded to
// cents, half away from zero.
func Price(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal.Mul(TaxRate))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    round2(subtotal.Add(tax)),
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
