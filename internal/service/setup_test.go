package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	repo      *repository.Repository
	cache     *cache.RedisCache
	redis     *miniredis.Miniredis
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	inventory *InventoryService
	carts     *CartService
	checkout  *CheckoutService
	orders    *OrderService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	creds := &repository.Credentials{
		Driver:            repository.DriverSQLite,
		SQLitePath:        ":memory:",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))
	t.Cleanup(func() { _ = repo.Close() })

	return newTestEnv(t, repo)
}

func newTestEnv(t *testing.T, repo *repository.Repository) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewRedisCache(client)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zap.NewNop()

	return &testEnv{
		repo:      repo,
		cache:     c,
		redis:     mr,
		registry:  reg,
		metrics:   m,
		inventory: NewInventoryService(repo, log),
		carts:     NewCartService(repo, c, m, log),
		checkout:  NewCheckoutService(repo, c, m, log),
		orders:    NewOrderService(repo, log),
	}
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:     name,
		Category: "Test",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	require.NoError(t, e.repo.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) addN(t *testing.T, userID string, productID int64, n int) {
	t.Helper()
	for range n {
		require.NoError(t, e.carts.AddOne(context.Background(), userID, productID))
	}
}

func (e *testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	s, err := e.repo.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) lines(t *testing.T, userID string) []domain.CartLine {
	t.Helper()
	lines, err := e.repo.GetCartLines(context.Background(), userID)
	require.NoError(t, err)
	return lines
}

func (e *testEnv) orderCount(t *testing.T, userID string) int {
	t.Helper()
	n := 0
	for _, err := range e.repo.ListOrdersByUserID(context.Background(), userID) {
		require.NoError(t, err)
		n++
	}
	return n
}
