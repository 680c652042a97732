package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (r *Repository) GetCartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return r.cartLines(ctx, userID, "")
}

// LockCartLines holds the user's cart rows until the surrounding transaction ends.
func (r *Repository) LockCartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return r.cartLines(ctx, userID, r.dialect.forUpdate)
}

func (r *Repository) cartLines(ctx context.Context, userID string, lock string) ([]domain.CartLine, error) {
	query := `SELECT product_id, quantity FROM cart_items
	          WHERE user_id = $1
	          ORDER BY added_at, product_id` + lock

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

// IncrementLine adds one unit of productID to the cart, creating the line if needed.
// The increment is refused with ErrQuantityLimit when it would push the line past limit.
func (r *Repository) IncrementLine(ctx context.Context, userID string, productID int64, limit int) (int, error) {
	query := `INSERT INTO cart_items (user_id, product_id, quantity, added_at)
	          VALUES ($1, $2, 1, $3)
	          ON CONFLICT (user_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + 1
	          WHERE cart_items.quantity + 1 <= $4
	          RETURNING quantity`

	var quantity int
	err := r.q.QueryRowContext(ctx, query, userID, productID, time.Now().UTC(), limit).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrQuantityLimit
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment cart line: %w", err)
	}
	return quantity, nil
}

func (r *Repository) UpdateLineQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE user_id = $2 AND product_id = $3`,
		quantity, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveLine is a no-op for lines that do not exist.
func (r *Repository) RemoveLine(ctx context.Context, userID string, productID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	return nil
}

func (r *Repository) RemoveLines(ctx context.Context, userID string, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(productIDs))
	args := make([]any, 0, len(productIDs)+1)
	args = append(args, userID)
	for i, id := range productIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove cart lines: %w", err)
	}
	return nil
}

func (r *Repository) ClearCart(ctx context.Context, userID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
