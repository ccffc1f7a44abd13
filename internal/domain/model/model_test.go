package model_test

import (
	"testing"

	"autoparts/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	allowed := map[model.OrderStatus][]model.OrderStatus{
		model.OrderStatusPlaced:         {model.OrderStatusApproved, model.OrderStatusCancelled},
		model.OrderStatusApproved:       {model.OrderStatusOutForDelivery, model.OrderStatusCancelled},
		model.OrderStatusOutForDelivery: {model.OrderStatusDelivered, model.OrderStatusCancelled},
	}
	all := []model.OrderStatus{
		model.OrderStatusPlaced, model.OrderStatusApproved, model.OrderStatusOutForDelivery,
		model.OrderStatusDelivered, model.OrderStatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, model.OrderStatusDelivered.IsTerminal())
	assert.True(t, model.OrderStatusCancelled.IsTerminal())
	assert.False(t, model.OrderStatusApproved.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := model.ParseOrderStatus("OutForDelivery")
	assert.True(t, ok)
	assert.Equal(t, model.OrderStatusOutForDelivery, st)

	_, ok = model.ParseOrderStatus("shipped")
	assert.False(t, ok)
}

func TestPaymentMethod(t *testing.T) {
	m, ok := model.ParsePaymentMethod("RAZORPAY_CARD")
	assert.True(t, ok)
	assert.True(t, m.UsesGateway())

	m, ok = model.ParsePaymentMethod("UPI_INTENT")
	assert.True(t, ok)
	assert.False(t, m.UsesGateway())

	assert.False(t, model.PaymentMethodCOD.UsesGateway())

	_, ok = model.ParsePaymentMethod("cod")
	assert.False(t, ok)
}

func TestAddress_Format(t *testing.T) {
	a := model.Address{Name: "Ravi Kumar", Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001"}
	assert.Equal(t, "Ravi Kumar, 12 MG Road, Bengaluru, Karnataka - 560001", a.Format())

	a.Line2 = " Near Metro "
	assert.Equal(t, "Ravi Kumar, 12 MG Road, Near Metro, Bengaluru, Karnataka - 560001", a.Format())
}
