package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

// --- Mocks ---

type ProductReaderMock struct {
	products []*domain.Product
	err      error
}

func (m ProductReaderMock) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m ProductReaderMock) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &service.ProductNotFoundError{ProductID: id}
}

type CartManagerMock struct {
	items []domain.CartItemView
	err   error

	lastUser     string
	lastProduct  int64
	lastQuantity int
	calls        []string
}

func (m *CartManagerMock) GetCart(ctx context.Context, userID string) ([]domain.CartItemView, error) {
	m.record("get", userID, 0, 0)
	return m.items, m.err
}

func (m *CartManagerMock) AddOne(ctx context.Context, userID string, productID int64) error {
	m.record("add", userID, productID, 0)
	return m.err
}

func (m *CartManagerMock) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	m.record("set", userID, productID, quantity)
	return m.err
}

func (m *CartManagerMock) Remove(ctx context.Context, userID string, productID int64) error {
	m.record("remove", userID, productID, 0)
	return m.err
}

func (m *CartManagerMock) Clear(ctx context.Context, userID string) error {
	m.record("clear", userID, 0, 0)
	return m.err
}

func (m *CartManagerMock) record(call, userID string, productID int64, quantity int) {
	m.calls = append(m.calls, call)
	m.lastUser = userID
	m.lastProduct = productID
	m.lastQuantity = quantity
}

type CheckouterMock struct {
	order *domain.Order
	err   error
}

func (m CheckouterMock) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type OrderReaderMock struct {
	orders []domain.OrderView
	err    error
}

func (m OrderReaderMock) ListOrders(ctx context.Context, userID string) ([]domain.OrderView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m OrderReaderMock) GetOrder(ctx context.Context, userID, orderID string) (*domain.OrderView, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			return &m.orders[i], nil
		}
	}
	return nil, service.ErrOrderNotFound
}

// --- helpers ---

func withUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
