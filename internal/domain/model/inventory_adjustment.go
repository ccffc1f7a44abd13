package model

import "time"

// 管理者が在庫数を変えたときの履歴。
// Delta = QuantityAfter - QuantityBefore
type InventoryAdjustment struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID      int64     `gorm:"not null;index:idx_inventory_adj_product_created,priority:1" json:"product_id"`
	AdminUserID    int64     `gorm:"not null;index" json:"admin_user_id"`
	QuantityBefore int64     `gorm:"not null" json:"quantity_before"`
	QuantityAfter  int64     `gorm:"not null" json:"quantity_after"`
	Delta          int64     `gorm:"not null" json:"delta"`
	Reason         string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index:idx_inventory_adj_product_created,priority:2" json:"created_at"`
}
