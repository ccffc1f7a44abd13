package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"autoparts/internal/domain/model"
	"autoparts/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatus_DeliverWithOtp(t *testing.T) {
	api := newTestAPI(t)
	out, _ := api.checkout(t, "COD", 1, nil)
	admin := api.as(t, adminID)
	statusURL := fmt.Sprintf("/api/order/%d/status", out.OrderID)

	for _, status := range []string{"Approved", "OutForDelivery"} {
		rec := api.do(t, http.MethodPut, statusURL, map[string]string{"status": status}, admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, status, decode[usecase.OrderOutput](t, rec).Status)
	}

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/generate-otp", out.OrderID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decode[usecase.DeliveryOtpOutput](t, rec)
	require.Len(t, gen.Otp, 6)

	wrong := "000000"
	if gen.Otp == wrong {
		wrong = "111111"
	}
	rec = api.do(t, http.MethodPut, statusURL, map[string]string{"status": "Delivered", "otp": wrong}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid otp"}`, rec.Body.String())
	assert.Equal(t, model.OrderStatusOutForDelivery, api.db.order(out.OrderID).Status)

	rec = api.do(t, http.MethodPut, statusURL, map[string]string{"status": "Delivered", "otp": gen.Otp}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	delivered := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, "Delivered", delivered.Status)
	assert.Empty(t, delivered.DeliveryOtp)

	actions := api.db.actions(out.OrderID)
	assert.Contains(t, actions, model.TimelineDeliveryOtpVerified)
	assert.Equal(t, model.TimelineOrderDelivered, actions[len(actions)-1])
}

func TestUpdateStatus_Guards(t *testing.T) {
	api := newTestAPI(t)
	out, _ := api.checkout(t, "COD", 1, nil)
	statusURL := fmt.Sprintf("/api/order/%d/status", out.OrderID)
	body := map[string]string{"status": "Approved"}

	rec := api.do(t, http.MethodPut, statusURL, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPut, statusURL, body, api.as(t, customerID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPut, statusURL, map[string]string{"status": "Shipped"}, api.as(t, adminID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, statusURL, map[string]string{"status": "Delivered"}, api.as(t, adminID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, model.OrderStatusPlaced, api.db.order(out.OrderID).Status)
}
