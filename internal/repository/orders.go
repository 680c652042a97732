package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, user_id, items, subtotal, tax, total, created_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.Subtotal,
		&order.Tax,
		&order.Total,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, items, subtotal, tax, total, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.q.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		string(itemsJSON),
		order.Subtotal,
		order.Tax,
		order.Total,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) iter.Seq2[*domain.Order, error] {
	return func(yield func(*domain.Order, error) bool) {
		query := `SELECT ` + orderColumns + `
		          FROM orders WHERE user_id = $1
		          ORDER BY created_at DESC, id`

		rows, err := r.q.QueryContext(ctx, query, userID)
		if err != nil {
			yield(nil, fmt.Errorf("query orders by user id: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			order, err := scanOrder(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan order: %w", err))
				return
			}
			if !yield(order, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("row iteration error: %w", err))
		}
	}
}
