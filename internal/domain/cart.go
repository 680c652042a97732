package domain

import "github.com/shopspring/decimal"

// CartLine is one stored (product, quantity) pair of a user's cart.
// Lines carry no price; they are re-validated against live stock.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartItemView is a cart line joined with the product it references.
type CartItemView struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}
