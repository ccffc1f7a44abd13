package model

import "time"

// UserIDは会話の持ち主（顧客）。管理者の返信も顧客のUserIDで保存する。
type ChatMessage struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"not null;index:idx_chat_user_sent,priority:1" json:"user_id"`
	SenderUserID int64     `gorm:"not null" json:"sender_user_id"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	SentAt       time.Time `gorm:"not null;index:idx_chat_user_sent,priority:2" json:"sent_at"`
}
