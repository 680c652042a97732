package repository

import (
	"context"
	"errors"
	"iter"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrQuantityLimit   = errors.New("cart line quantity limit reached")
	ErrOrderNotFound   = errors.New("order not found")
)

type Credentials struct {
	Driver            string // "postgres" or "sqlite"
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SQLitePath        string
	MigrationsDirPath string
}

// ProductRepository is the inventory ledger: authoritative products and stock.
type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CountProducts(ctx context.Context) (int, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	GetStock(ctx context.Context, id int64) (int, error)
	SetStock(ctx context.Context, id int64, stock int) error

	// LockProduct reads a product and holds its row until the surrounding
	// transaction ends. Outside InTx it behaves like GetProduct.
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)

	// DecrementStock subtracts amount from the stock, clamping at zero,
	// and returns the new stock.
	DecrementStock(ctx context.Context, id int64, amount int) (int, error)
}

type CartRepository interface {
	GetCartLines(ctx context.Context, userID string) ([]domain.CartLine, error)

	// LockCartLines is GetCartLines holding the user's line rows until the
	// surrounding transaction ends.
	LockCartLines(ctx context.Context, userID string) ([]domain.CartLine, error)

	// IncrementLine adds one unit to the line, creating it when absent, as
	// long as the resulting quantity stays within limit. Returns
	// ErrQuantityLimit and leaves the line untouched otherwise.
	IncrementLine(ctx context.Context, userID string, productID int64, limit int) (int, error)
	UpdateLineQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	RemoveLine(ctx context.Context, userID string, productID int64) error
	// RemoveLines deletes only the named lines; other lines of the cart stay.
	RemoveLines(ctx context.Context, userID string, productIDs []int64) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderRepository is the append-only order archive.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// ListOrdersByUserID yields the user's orders newest first. Every range
	// over the returned sequence runs the query again.
	ListOrdersByUserID(ctx context.Context, userID string) iter.Seq2[*domain.Order, error]
}

type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Store groups every repository behind a single unit of work.
type Store interface {
	ProductRepository
	CartRepository
	OrderRepository
	OutboxRepository

	// InTx runs fn against a transactional Store. fn's error rolls every
	// write back; a nil return commits them together.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type RepoInterface interface {
	Store
	RunMigrations(*Credentials) error
	Close() error
}
