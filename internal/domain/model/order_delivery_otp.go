package model

import "time"

// 配達確認OTP。注文ごとに有効なものは1つ（再発行は上書き）。
type OrderDeliveryOtp struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64      `gorm:"not null;uniqueIndex" json:"order_id"`
	OtpHash    string     `gorm:"type:varchar(255);not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	IsVerified bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
