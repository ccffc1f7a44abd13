package repository

import (
	"context"

	"autoparts/internal/domain/model"
)

// 注文タイムラインは追記と一覧のみ。
type OrderTimelineRepository interface {
	Append(ctx context.Context, entry model.OrderTimeline) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderTimeline, error)
}
