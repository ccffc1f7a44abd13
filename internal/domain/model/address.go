package model

import (
	"strings"
	"time"
)

// 配送先住所
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//Home / Work など
	Label string `gorm:"type:varchar(50);not null;default:''" json:"label"`

	//宛名
	Name string `gorm:"type:varchar(255);not null" json:"name"`

	//電話番号
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	//番地など
	Line1 string `gorm:"type:varchar(255);not null" json:"line1"`

	//建物名など
	Line2 string `gorm:"type:varchar(255)" json:"line2"`

	City  string `gorm:"type:varchar(255);not null" json:"city"`
	State string `gorm:"type:varchar(100);not null" json:"state"`

	//PINコード(6桁)
	Pincode string `gorm:"type:varchar(10);not null" json:"pincode"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// 注文のスナップショット用に1行へまとめる。
func (a *Address) Format() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Name, a.Line1, a.Line2, a.City, a.State} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	s := strings.Join(parts, ", ")
	if pin := strings.TrimSpace(a.Pincode); pin != "" {
		s += " - " + pin
	}
	return s
}
