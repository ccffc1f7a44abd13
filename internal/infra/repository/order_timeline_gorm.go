package repository

import (
	"context"
	"time"

	"autoparts/internal/domain/model"

	"gorm.io/gorm"
)

type OrderTimelineGormRepository struct {
	db *gorm.DB
}

func NewOrderTimelineGormRepository(db *gorm.DB) *OrderTimelineGormRepository {
	return &OrderTimelineGormRepository{db: db}
}

func (r *OrderTimelineGormRepository) Append(ctx context.Context, entry model.OrderTimeline) error {
	entry.ID = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

// 古い順
func (r *OrderTimelineGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderTimeline, error) {
	var list []model.OrderTimeline
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&list).Error; err != nil {
		return []model.OrderTimeline{}, err
	}
	return list, nil
}
