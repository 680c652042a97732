package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, userID string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	timeout  time.Duration
	log      *zap.Logger
}

func NewCheckoutHandler(checkout Checkouter, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutLineDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type CheckoutOrderDTO struct {
	ID        string            `json:"id"`
	Subtotal  string            `json:"subtotal"`
	Tax       string            `json:"tax"`
	Total     string            `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []CheckoutLineDTO `json:"items"`
}

type CheckoutResponseDTO struct {
	Message string           `json:"message"`
	Order   CheckoutOrderDTO `json:"order"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.checkout.Checkout(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	items := make([]CheckoutLineDTO, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, CheckoutLineDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     money(l.PriceAtPurchase),
		})
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		Message: "Checkout successful",
		Order: CheckoutOrderDTO{
			ID:        order.ID.String(),
			Subtotal:  money(order.Subtotal),
			Tax:       money(order.Tax),
			Total:     money(order.Total),
			CreatedAt: order.CreatedAt,
			Items:     items,
		},
	})
}
