package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"autoparts/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTotal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "total: want %s, got %s", want, got)
}

func TestCartRoutes_ReturnSummary(t *testing.T) {
	api := newTestAPI(t)
	pad := api.db.addProduct("Brake Pad", "100.00", 5)
	filter := api.db.addProduct("Oil Filter", "50.50", 10)
	auth := api.as(t, customerID)

	rec := api.do(t, http.MethodGet, "/cart", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[usecase.CartResponse](t, rec)
	assert.Empty(t, cart.Items)
	requireTotal(t, "0", cart.Total)

	rec = api.do(t, http.MethodPost, "/cart/add", map[string]int64{"product_id": pad.ID, "quantity": 2}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodPost, "/cart/add", map[string]int64{"product_id": filter.ID, "quantity": 1}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Brake Pad", cart.Items[0].Name)
	requireTotal(t, "250.50", cart.Total)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/cart/decrease/%d", pad.ID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	assert.Equal(t, int64(1), cart.Items[0].Quantity)
	requireTotal(t, "150.50", cart.Total)

	rec = api.do(t, http.MethodPut, "/cart/update", map[string]any{
		"items": []map[string]int64{{"product_id": filter.ID, "quantity": 3}},
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	requireTotal(t, "251.50", decode[usecase.CartResponse](t, rec).Total)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/cart/remove/%d", pad.ID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, filter.ID, cart.Items[0].ProductID)
	requireTotal(t, "151.50", cart.Total)

	rec = api.do(t, http.MethodDelete, "/cart/clear", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	assert.Empty(t, cart.Items)
	requireTotal(t, "0", cart.Total)
}

func TestCartRoutes_Errors(t *testing.T) {
	api := newTestAPI(t)
	auth := api.as(t, customerID)

	rec := api.do(t, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/cart/add", map[string]int64{"product_id": 404, "quantity": 1}, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/cart/decrease/abc", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/cart/add", "{not json", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
