package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresDB(t *testing.T) *Repository {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Driver:            DriverPostgres,
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		_ = repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return repo
}

func TestPostgres_ProductRoundTrip(t *testing.T) {
	repo := setupPostgresDB(t)
	ctx := context.Background()

	p := createTestProduct(t, repo, "Wireless Headphones", "199.99", 9)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("199.99")))
	assert.Equal(t, 9, got.Stock)
}

func TestPostgres_IncrementLineLimit(t *testing.T) {
	repo := setupPostgresDB(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		qty, err := repo.IncrementLine(ctx, "user-1", 1, 3)
		require.NoError(t, err)
		assert.Equal(t, want, qty)
	}

	_, err := repo.IncrementLine(ctx, "user-1", 1, 3)
	assert.ErrorIs(t, err, ErrQuantityLimit)
}

func TestPostgres_OrderRoundTrip(t *testing.T) {
	repo := setupPostgresDB(t)
	ctx := context.Background()

	order := newTestOrder("user-1", time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, order))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, got.Lines, 2)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("37.45")))

	_, err = repo.GetOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// Two transactions locking the same product must serialise: the second
// one observes the first one's decrement.
func TestPostgres_LockProductSerialisesDecrements(t *testing.T) {
	repo := setupPostgresDB(t)
	ctx := context.Background()

	p := createTestProduct(t, repo, "Laptop Pro 14", "1299.00", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InTx(ctx, func(tx Store) error {
				locked, err := tx.LockProduct(ctx, p.ID)
				if err != nil {
					return err
				}
				if locked.Stock < 1 {
					return ErrQuantityLimit
				}
				_, err = tx.DecrementStock(ctx, p.ID, 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	stock, err := repo.GetStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

// A line added from another connection after the checkout transaction
// locked the cart must survive that transaction's cleanup.
func TestPostgres_RemoveLinesKeepsLineAddedDuringTx(t *testing.T) {
	repo := setupPostgresDB(t)
	ctx := context.Background()

	_, err := repo.IncrementLine(ctx, "user-1", 1, 10)
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx Store) error {
		locked, err := tx.LockCartLines(ctx, "user-1")
		if err != nil {
			return err
		}
		require.Len(t, locked, 1)

		// Commits on its own connection while tx is still open.
		if _, err := repo.IncrementLine(ctx, "user-1", 2, 10); err != nil {
			return err
		}

		ids := make([]int64, 0, len(locked))
		for _, l := range locked {
			ids = append(ids, l.ProductID)
		}
		return tx.RemoveLines(ctx, "user-1", ids)
	})
	require.NoError(t, err)

	lines, err := repo.GetCartLines(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestPostgres_StockCheckConstraint(t *testing.T) {
	repo := setupPostgresDB(t)

	err := repo.CreateProduct(context.Background(), &domain.Product{
		Name:  "Broken",
		Price: decimal.NewFromInt(1),
		Stock: -1,
	})
	assert.Error(t, err)
}
