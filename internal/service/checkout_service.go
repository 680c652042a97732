package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CheckoutService turns a cart into an order. Validation, stock decrement,
// order creation and cart clearing happen in one unit of work, so a failed
// checkout leaves no trace.
type CheckoutService struct {
	store   repository.Store
	cache   cache.CartCache
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewCheckoutService(store repository.Store, c cache.CartCache, m *metrics.Metrics, log *zap.Logger) *CheckoutService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CheckoutService{
		store:   store,
		cache:   c,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type lockedLine struct {
	line    domain.CartLine
	product *domain.Product
}

func (s *CheckoutService) Checkout(ctx context.Context, userID string) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.ObserveCheckout(resultOf(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	log := logger.WithContext(ctx, s.log).With(zap.String("user_id", userID))

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		locked, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrEmptyCart
		}

		for _, l := range locked {
			if l.line.Quantity > l.product.Stock {
				return &StockError{ProductID: l.product.ID, ProductName: l.product.Name}
			}
		}

		priced := make([]pricing.Line, 0, len(locked))
		orderLines := make([]domain.OrderLine, 0, len(locked))
		for _, l := range locked {
			priced = append(priced, pricing.Line{UnitPrice: l.product.Price, Quantity: l.line.Quantity})
			orderLines = append(orderLines, domain.OrderLine{
				ProductID:       l.product.ID,
				Quantity:        l.line.Quantity,
				PriceAtPurchase: l.product.Price,
			})
		}
		totals := pricing.Price(priced)

		for _, l := range locked {
			left, err := tx.DecrementStock(ctx, l.product.ID, l.line.Quantity)
			if errors.Is(err, repository.ErrProductNotFound) {
				return &ProductNotFoundError{ProductID: l.product.ID}
			}
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			// The decrement clamped: someone else took the stock first.
			if left != l.product.Stock-l.line.Quantity {
				return &StockError{ProductID: l.product.ID, ProductName: l.product.Name}
			}
		}

		o := &domain.Order{
			ID:        uuid.New(),
			UserID:    userID,
			Lines:     orderLines,
			Subtotal:  totals.Subtotal,
			Tax:       totals.Tax,
			Total:     totals.Total,
			CreatedAt: s.now(),
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		// Only the checked-out lines go; a line added after the lock was
		// taken is not part of this order and stays in the cart.
		checkedOut := make([]int64, 0, len(locked))
		for _, l := range locked {
			checkedOut = append(checkedOut, l.product.ID)
		}
		if err := tx.RemoveLines(ctx, userID, checkedOut); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		event, err := orderPlacedEvent(o)
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return fmt.Errorf("record order event: %w", err)
		}

		order = o
		return nil
	})
	if err != nil {
		if IsDomainError(err) {
			log.Info("checkout rejected", zap.Error(err))
		} else {
			log.Error("checkout failed", zap.Error(err))
		}
		return nil, err
	}

	invalidateCart(ctx, s.cache, s.log, userID)
	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Lines)))
	return order, nil
}

// lockCart reads the user's lines and locks each referenced product row in
// ascending id order, so concurrent checkouts over overlapping products
// always acquire locks in the same sequence.
func lockCart(ctx context.Context, tx repository.Store, userID string) ([]lockedLine, error) {
	lines, err := tx.LockCartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	ordered := slices.Clone(lines)
	slices.SortFunc(ordered, func(a, b domain.CartLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	products := make(map[int64]*domain.Product, len(ordered))
	for _, line := range ordered {
		p, err := tx.LockProduct(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", line.ProductID, err)
		}
		products[line.ProductID] = p
	}

	locked := make([]lockedLine, 0, len(lines))
	for _, line := range lines {
		locked = append(locked, lockedLine{line: line, product: products[line.ProductID]})
	}
	return locked, nil
}

func orderPlacedEvent(o *domain.Order) (*domain.OutboxEvent, error) {
	payload, err := json.Marshal(domain.OrderPlacedEvent{
		OrderID:   o.ID.String(),
		UserID:    o.UserID,
		Items:     o.Lines,
		Subtotal:  o.Subtotal.StringFixed(2),
		Tax:       o.Tax.StringFixed(2),
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return &domain.OutboxEvent{
		AggregateID: o.ID.String(),
		EventType:   domain.EventTypeOrderPlaced,
		Payload:     payload,
		CreatedAt:   o.CreatedAt,
	}, nil
}
