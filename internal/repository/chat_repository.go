package repository

import (
	"context"
	"time"

	"autoparts/internal/domain/model"
)

// 管理者の会話一覧の1行（ユーザーごとの最新メッセージ）
type ChatThread struct {
	UserID        int64
	FullName      string
	Phone         string
	LastMessage   string
	LastIsAdmin   bool
	LastMessageAt time.Time
}

type ChatRepository interface {
	Create(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error)
	// 古い順
	ListConversation(ctx context.Context, userID int64, page, limit int) ([]model.ChatMessage, int64, error)
	ListThreads(ctx context.Context, page, limit int) ([]ChatThread, int64, error)
}
