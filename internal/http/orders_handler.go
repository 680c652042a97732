package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderReader interface {
	ListOrders(ctx context.Context, userID string) ([]domain.OrderView, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.OrderView, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

type OrderItemDTO struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderDTO struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Subtotal  string         `json:"subtotal"`
	Tax       string         `json:"tax"`
	Total     string         `json:"total"`
	Items     []OrderItemDTO `json:"items"`
}

type OrdersResponseDTO struct {
	Orders []OrderDTO `json:"orders"`
}

func toOrderDTO(v domain.OrderView) OrderDTO {
	items := make([]OrderItemDTO, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Category:  it.Category,
			Quantity:  it.Quantity,
			Price:     money(it.Price),
		})
	}
	return OrderDTO{
		ID:        v.ID,
		CreatedAt: v.CreatedAt,
		Subtotal:  money(v.Subtotal),
		Tax:       money(v.Tax),
		Total:     money(v.Total),
		Items:     items,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	views, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	resp := OrdersResponseDTO{Orders: make([]OrderDTO, 0, len(views))}
	for _, v := range views {
		resp.Orders = append(resp.Orders, toOrderDTO(v))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	view, err := h.orders.GetOrder(ctx, userID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(*view))
}
