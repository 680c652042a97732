package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService reads the order archive and resolves product details for
// display. Orders keep their own price snapshot; only names and categories
// come from the live catalog.
type OrderService struct {
	store repository.Store
	log   *zap.Logger
}

func NewOrderService(store repository.Store, log *zap.Logger) *OrderService {
	return &OrderService{store: store, log: log}
}

// ListOrders returns the user's order history, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.OrderView, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	// Collect first: the product lookup must not run while rows are open.
	var orders []*domain.Order
	for order, err := range s.store.ListOrdersByUserID(ctx, userID) {
		if err != nil {
			span.RecordError(err)
			logger.WithContext(ctx, s.log).Error("list orders failed", zap.String("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, order)
	}

	products, err := s.products(ctx, orders...)
	if err != nil {
		return nil, err
	}

	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o, products))
	}
	return views, nil
}

// GetOrder returns one order of the user. Orders of other users are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.OrderView, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.store.GetOrderByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	products, err := s.products(ctx, order)
	if err != nil {
		return nil, err
	}
	view := orderView(order, products)
	return &view, nil
}

func (s *OrderService) products(ctx context.Context, orders ...*domain.Order) (map[int64]*domain.Product, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, o := range orders {
		for _, line := range o.Lines {
			if _, ok := seen[line.ProductID]; ok {
				continue
			}
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	products, err := s.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve order products: %w", err)
	}
	return products, nil
}

func orderView(o *domain.Order, products map[int64]*domain.Product) domain.OrderView {
	items := make([]domain.OrderLineView, 0, len(o.Lines))
	for _, line := range o.Lines {
		item := domain.OrderLineView{
			ProductID: line.ProductID,
			Name:      domain.RemovedProductName,
			Quantity:  line.Quantity,
			Price:     line.PriceAtPurchase,
		}
		if p, ok := products[line.ProductID]; ok {
			item.Name = p.Name
			item.Category = p.Category
		}
		items = append(items, item)
	}

	return domain.OrderView{
		ID:        o.ID.String(),
		CreatedAt: o.CreatedAt,
		Subtotal:  o.Subtotal,
		Tax:       o.Tax,
		Total:     o.Total,
		Items:     items,
	}
}
