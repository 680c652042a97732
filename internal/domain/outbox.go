package domain

import "time"

const EventTypeOrderPlaced = "order.placed"

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OrderPlacedEvent is the payload published for every committed order.
type OrderPlacedEvent struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Items     []OrderLine `json:"items"`
	Subtotal  string      `json:"subtotal"`
	Tax       string      `json:"tax"`
	Total     string      `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}
