package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "Placed"
	OrderStatusApproved       OrderStatus = "Approved"
	OrderStatusOutForDelivery OrderStatus = "OutForDelivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

// 許可する遷移。DeliveredとCancelledは終端。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:       {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPlaced, OrderStatusApproved, OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodUPIIntent    PaymentMethod = "UPI_INTENT"
	PaymentMethodRazorpayUPI  PaymentMethod = "RAZORPAY_UPI"
	PaymentMethodRazorpayCard PaymentMethod = "RAZORPAY_CARD"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodCOD, PaymentMethodUPIIntent, PaymentMethodRazorpayUPI, PaymentMethodRazorpayCard:
		return m, true
	}
	return "", false
}

// 決済ゲートウェイ側で注文を作る方式か
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodRazorpayUPI || m == PaymentMethodRazorpayCard
}

// 顧客名・電話・住所は注文時点のスナップショット。
// StockReleasedは在庫の戻しが済んでいるか（二重戻し防止）。
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	CustomerName  string          `gorm:"type:varchar(255);not null;default:''" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(20);not null;default:''" json:"customer_phone"`
	Address       string          `gorm:"type:text;not null" json:"address"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`

	DeliveryOtp string `gorm:"type:varchar(10);not null;default:''" json:"delivery_otp,omitempty"`

	GatewayOrderID   string `gorm:"type:varchar(100);not null;default:'';index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `gorm:"type:varchar(100);not null;default:''" json:"gateway_payment_id,omitempty"`
	GatewaySignature string `gorm:"type:varchar(255);not null;default:''" json:"-"`
	UpiTxnRef        string `gorm:"type:varchar(100);not null;default:''" json:"upi_txn_ref,omitempty"`

	IsCancelled   bool   `gorm:"not null;default:false" json:"is_cancelled"`
	CancelReason  string `gorm:"type:varchar(500);not null;default:''" json:"cancel_reason,omitempty"`
	StockReleased bool   `gorm:"not null;default:false" json:"-"`

	IdempotencyKey *string   `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
