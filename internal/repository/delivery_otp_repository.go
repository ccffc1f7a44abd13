package repository

import (
	"context"
	"time"

	"autoparts/internal/domain/model"
)

type DeliveryOtpRepository interface {
	// 注文ごとに1行。既にあればハッシュ・期限を上書きして未検証に戻す。
	Upsert(ctx context.Context, otp model.OrderDeliveryOtp) error
	// 未検証のもの。無ければErrNotFound
	FindActiveByOrderID(ctx context.Context, orderID int64) (model.OrderDeliveryOtp, error)
	// 未検証のときだけ検証済みにする。既に検証済みならErrNotFound
	MarkVerified(ctx context.Context, id int64, at time.Time) error
}
