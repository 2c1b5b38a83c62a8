package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository/memory"
	"bakery-orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Pagination *Pagination     `json:"pagination"`
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: 1, ChefID: 7, Name: "Celebration cake", Price: decimal.NewFromInt(100), IsAvailable: true})
	store.PutProduct(domain.Product{ID: 2, ChefID: 7, Name: "Croissant box", Price: decimal.NewFromInt(50), IsAvailable: true})

	deps := services.Deps{
		Orders:        store.Orders(),
		Items:         store.Items(),
		Promotions:    store.Promotions(),
		Notifications: store.Notifications(),
		Products:      store,
		UnitOfWork:    store.UnitOfWork(),
	}
	orders, err := services.NewOrderService(deps)
	require.NoError(t, err)
	promos, err := services.NewPromotionService(deps)
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestLogger(nil), Recovery(nil))
	NewHandler(orders, promos, nil).RegisterRoutes(r)
	return &testServer{router: r, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (s *testServer) createOrder(t *testing.T) map[string]any {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/orders", gin.H{
		"customerId":  11,
		"chefId":      7,
		"deliveryFee": 30,
		"items": []gin.H{
			{"productId": 1, "quantity": 2},
			{"productId": 2, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return order
}

func TestHandler_CreateAndGetOrder(t *testing.T) {
	s := newTestServer(t)
	order := s.createOrder(t)
	assert.Equal(t, "250", order["subtotal"])
	assert.Equal(t, "280", order["totalAmount"])
	assert.Equal(t, "PENDING", order["status"])

	w, env := s.do(t, http.MethodGet, fmt.Sprintf("/orders/%v", order["id"]), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var detail map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, order["orderNumber"], detail["orderNumber"])
	assert.Equal(t, "280", detail["totalAmount"])
	assert.ElementsMatch(t, []any{"CONFIRMED", "CANCELLED"}, detail["nextStatuses"])
	assert.ElementsMatch(t, []any{"PAID", "FAILED"}, detail["nextPaymentStatuses"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	order := s.createOrder(t)
	id := order["id"]
	items := order["items"].([]any)
	firstItem := items[0].(map[string]any)["id"]

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "unknown order", method: http.MethodGet, path: "/orders/999", status: http.StatusNotFound},
		{name: "non numeric id", method: http.MethodGet, path: "/orders/abc", status: http.StatusBadRequest},
		{name: "missing items", method: http.MethodPost, path: "/orders", body: gin.H{"customerId": 1, "chefId": 7}, status: http.StatusBadRequest},
		{name: "unknown status", method: http.MethodPost, path: fmt.Sprintf("/orders/%v/status", id), body: gin.H{"status": "SHIPPED"}, status: http.StatusBadRequest},
		{name: "disallowed transition", method: http.MethodPost, path: fmt.Sprintf("/orders/%v/status", id), body: gin.H{"status": "DELIVERED"}, status: http.StatusBadRequest},
		{name: "disallowed payment transition", method: http.MethodPost, path: fmt.Sprintf("/orders/%v/payment-status", id), body: gin.H{"paymentStatus": "REFUNDED"}, status: http.StatusBadRequest},
		{name: "zero quantity add", method: http.MethodPost, path: fmt.Sprintf("/orders/%v/items", id), body: gin.H{"productId": 2, "quantity": 0}, status: http.StatusBadRequest},
		{name: "delete with items", method: http.MethodDelete, path: fmt.Sprintf("/orders/%v", id), status: http.StatusUnprocessableEntity},
		{name: "unknown promotion", method: http.MethodPost, path: fmt.Sprintf("/orders/%v/promotion", id), body: gin.H{"promotionId": 5}, status: http.StatusNotFound},
		{name: "unknown item", method: http.MethodDelete, path: "/order-items/999", status: http.StatusNotFound},
		{name: "quantity required", method: http.MethodPatch, path: fmt.Sprintf("/order-items/%v", firstItem), body: gin.H{}, status: http.StatusBadRequest},
		{name: "bad list filter", method: http.MethodGet, path: "/orders?status=LOST", status: http.StatusBadRequest},
		{name: "bad list date", method: http.MethodGet, path: "/orders?from=yesterday", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestHandler_ItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	order := s.createOrder(t)
	id := order["id"]

	w, env := s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/items", id), gin.H{"productId": 2, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "330", updated["totalAmount"])

	items := updated["items"].([]any)
	for _, raw := range items {
		item := raw.(map[string]any)
		w, _ = s.do(t, http.MethodPatch, fmt.Sprintf("/order-items/%v", item["id"]), gin.H{"quantity": 0})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%v", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "0", updated["subtotal"])
	assert.Equal(t, "30", updated["totalAmount"])

	w, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/orders/%v", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_StatusFlow(t *testing.T) {
	s := newTestServer(t)
	order := s.createOrder(t)
	id := order["id"]

	w, env := s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/cancel", id), gin.H{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "CANCELLED", cancelled["status"])
	assert.Equal(t, "duplicate", cancelled["cancelReason"])

	w, env = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/restore", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var restored map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &restored))
	assert.Equal(t, "PENDING", restored["status"])
	assert.Nil(t, restored["cancelledAt"])

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/payment-status", id), gin.H{"paymentStatus": "paid"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Promotions(t *testing.T) {
	s := newTestServer(t)
	order := s.createOrder(t)
	now := time.Now().UTC()

	w, env := s.do(t, http.MethodPost, "/promotions", gin.H{
		"chefId":        7,
		"title":         "Ten off",
		"discountType":  "PERCENTAGE",
		"discountValue": 10,
		"startDate":     now.Add(-time.Hour),
		"endDate":       now.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var promo map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &promo))

	w, env = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/promotion", order["id"]), gin.H{"promotionId": promo["id"]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var applied map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &applied))
	assert.Equal(t, "28", applied["discountAmount"])
	assert.Equal(t, "252", applied["order"].(map[string]any)["totalAmount"])

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%v/promotion", order["id"]), gin.H{"promotionId": promo["id"]})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/promotions/%v", promo["id"]), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPost, "/promotions/deactivate-expired", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var swept DeactivateExpiredResponse
	require.NoError(t, json.Unmarshal(env.Data, &swept))
	assert.Zero(t, swept.Deactivated)
}

func TestHandler_ListOrdersAndHealth(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.createOrder(t)
	}

	w, env := s.do(t, http.MethodGet, "/orders?limit=2&status=pending&customerId=11", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(3), env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.Limit)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 2)

	w, env = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = s.do(t, http.MethodGet, "/notifications?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(services.ErrOrderNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(services.ErrInvalidQuantity))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(services.ErrPromotionInactive))
	assert.Equal(t, http.StatusConflict, statusFor(services.ErrConcurrentModification))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}
