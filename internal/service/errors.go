package service

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/metrics"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrItemNotInCart     = errors.New("item not found in cart")
	ErrOrderNotFound     = errors.New("order not found")
)

// StockError names the product whose stock cannot cover the request.
type StockError struct {
	ProductID   int64
	ProductName string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for %q", e.ProductName)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// IsDomainError reports whether err is one of the expected rejections
// rather than an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrItemNotInCart) ||
		errors.Is(err, ErrOrderNotFound)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case IsDomainError(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailure
	}
}
