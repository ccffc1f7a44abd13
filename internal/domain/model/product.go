package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quantityは在庫数。DB側でも負数を禁止する。
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU         string          `gorm:"column:sku;type:varchar(100);not null;default:'';uniqueIndex:idx_products_sku,where:sku <> ''" json:"sku"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int64           `gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0" json:"quantity"`
	ImageURL    string          `gorm:"type:text;not null;default:''" json:"image_url"`
	PartTypeID  *int64          `gorm:"index" json:"part_type_id"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
