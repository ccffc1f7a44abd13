package model

import "time"

// タイムラインのアクション名（画面にそのまま出す）
const (
	TimelineOrderPlaced          = "Order Placed"
	TimelineUpiIntentGenerated   = "UPI Intent Generated"
	TimelineGatewayOrderCreated  = "Razorpay Order Created"
	TimelinePaymentFailed        = "Payment Failed"
	TimelinePaymentPaid          = "Payment Paid"
	TimelinePaymentPaidUpi       = "Payment Paid (UPI Intent)"
	TimelinePaymentCaptured      = "Payment Captured (Webhook)"
	TimelineOrderApproved        = "Order Approved"
	TimelineOutForDelivery       = "Out For Delivery"
	TimelineDeliveryOtpGenerated = "Delivery OTP Generated"
	TimelineDeliveryOtpVerified  = "Delivery OTP Verified"
	TimelineOrderDelivered       = "Order Delivered"
	TimelineOrderCancelled       = "Order Cancelled"
)

// 注文の履歴。追記のみで更新・削除はしない。
type OrderTimeline struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64  `gorm:"not null;index" json:"order_id"`
	Action  string `gorm:"type:varchar(100);not null" json:"action"`
	Notes   string `gorm:"type:text;not null;default:''" json:"notes,omitempty"`

	//操作したユーザー。システム起因(webhook)はnil。
	PerformedByUserID *int64 `gorm:"index" json:"performed_by_user_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
