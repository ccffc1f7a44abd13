package repository

import (
	"context"
	"time"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryOtpGormRepository struct {
	db *gorm.DB
}

func NewDeliveryOtpGormRepository(db *gorm.DB) *DeliveryOtpGormRepository {
	return &DeliveryOtpGormRepository{db: db}
}

// order_idで上書き。再発行で古いコードは無効になる。
func (r *DeliveryOtpGormRepository) Upsert(ctx context.Context, otp model.OrderDeliveryOtp) error {
	otp.ID = 0
	otp.IsVerified = false
	otp.VerifiedAt = nil
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"otp_hash":    otp.OtpHash,
			"expires_at":  otp.ExpiresAt,
			"is_verified": false,
			"verified_at": nil,
			"updated_at":  gorm.Expr("NOW()"),
		}),
	}).Create(&otp).Error
}

func (r *DeliveryOtpGormRepository) FindActiveByOrderID(ctx context.Context, orderID int64) (model.OrderDeliveryOtp, error) {
	var otp model.OrderDeliveryOtp
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND is_verified = FALSE", orderID).
		Order("id desc").
		First(&otp).Error
	if err != nil {
		return model.OrderDeliveryOtp{}, mapErr(err)
	}
	return otp, nil
}

func (r *DeliveryOtpGormRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.OrderDeliveryOtp{}).
		Where("id = ? AND is_verified = FALSE", id).
		Updates(map[string]interface{}{
			"is_verified": true,
			"verified_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
