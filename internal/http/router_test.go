package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiClient struct {
	t      *testing.T
	srv    *httptest.Server
	token  string
	client *http.Client
}

func newTestAPI(t *testing.T) *apiClient {
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

	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := cache.NopCache{}

	inventory := service.NewInventoryService(repo, log)
	seeded, err := inventory.SeedCatalog(t.Context())
	require.NoError(t, err)
	require.True(t, seeded)

	router := NewRouter(RouterConfig{
		JWTSecret:      testSecret,
		RequestTimeout: 5 * time.Second,
		Gatherer:       reg,
		Logger:         log,
	}, Services{
		Products: inventory,
		Carts:    service.NewCartService(repo, c, m, log),
		Checkout: service.NewCheckoutService(repo, c, m, log),
		Orders:   service.NewOrderService(repo, log),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, err := NewToken(testSecret, "user-1", nil)
	require.NoError(t, err)

	return &apiClient{t: t, srv: srv, token: token, client: srv.Client()}
}

func (a *apiClient) do(method, path, body string, out any) int {
	a.t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: a.token})
	}

	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, api.do("GET", "/health", "", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CatalogIsPublic(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	var products []ProductDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/products", "", &products))
	require.Len(t, products, 3)

	var cartErr ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, api.do("GET", "/api/v1/cart", "", &cartErr))
	assert.Equal(t, "Not authenticated (no token)", cartErr.Error)
}

func TestRouter_ShoppingFlow(t *testing.T) {
	api := newTestAPI(t)

	var products []ProductDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/products", "", &products))
	first := products[0]

	require.Equal(t, http.StatusOK, api.do("POST", "/api/v1/cart/items", `{"product_id":`+itoa(first.ID)+`}`, nil))
	require.Equal(t, http.StatusOK, api.do("PUT", "/api/v1/cart/items/"+itoa(first.ID), `{"quantity":2}`, nil))

	var cart CartResponseDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/cart", "", &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, first.Price, cart.Items[0].Price)

	var checkout CheckoutResponseDTO
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/v1/checkout", "", &checkout))
	assert.Equal(t, "Checkout successful", checkout.Message)
	require.Len(t, checkout.Order.Items, 1)

	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/cart", "", &cart))
	assert.Empty(t, cart.Items)

	var orders OrdersResponseDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/orders", "", &orders))
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, checkout.Order.ID, orders.Orders[0].ID)
	assert.Equal(t, checkout.Order.Total, orders.Orders[0].Total)
	assert.Equal(t, first.Name, orders.Orders[0].Items[0].Name)

	var order OrderDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/orders/"+checkout.Order.ID, "", &order))
	assert.Equal(t, checkout.Order.ID, order.ID)

	var product ProductDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/products/"+itoa(first.ID), "", &product))
	assert.Equal(t, first.Stock-2, product.Stock)
}

func TestRouter_EmptyCheckout(t *testing.T) {
	api := newTestAPI(t)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, api.do("POST", "/api/v1/checkout", "", &errResp))
	assert.Equal(t, "Cart is empty", errResp.Error)
}

func TestRouter_OrdersAreScopedToUser(t *testing.T) {
	api := newTestAPI(t)

	var products []ProductDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/products", "", &products))
	require.Equal(t, http.StatusOK, api.do("POST", "/api/v1/cart/items", `{"product_id":`+itoa(products[0].ID)+`}`, nil))

	var checkout CheckoutResponseDTO
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/v1/checkout", "", &checkout))

	other, err := NewToken(testSecret, "user-2", nil)
	require.NoError(t, err)
	api.token = other

	var orders OrdersResponseDTO
	require.Equal(t, http.StatusOK, api.do("GET", "/api/v1/orders", "", &orders))
	assert.Empty(t, orders.Orders)
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/v1/orders/"+checkout.Order.ID, "", nil))
}

func TestRouter_Metrics(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusBadRequest, api.do("POST", "/api/v1/checkout", "", nil))

	resp, err := api.client.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_checkouts_total{result="rejected"} 1`)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
