package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemovedProductName is shown for order lines whose product was deleted.
const RemovedProductName = "Product removed"

type OrderLine struct {
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// Order is created once per successful checkout and never mutated.
type Order struct {
	ID        uuid.UUID
	UserID    string
	Lines     []OrderLine
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

type OrderLineView struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderView struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderLineView `json:"items"`
}
