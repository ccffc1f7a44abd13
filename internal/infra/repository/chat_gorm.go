package repository

import (
	"context"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"gorm.io/gorm"
)

type ChatGormRepository struct {
	db *gorm.DB
}

func NewChatGormRepository(db *gorm.DB) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

func (r *ChatGormRepository) Create(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return model.ChatMessage{}, err
	}
	return msg, nil
}

// page=1が最新。ページ内は古い順に並べ直して返す。
func (r *ChatGormRepository) ListConversation(ctx context.Context, userID int64, page, limit int) ([]model.ChatMessage, int64, error) {
	page, limit = normalizePage(page, limit, 200, 50)

	q := r.db.WithContext(ctx).Model(&model.ChatMessage{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.ChatMessage{}, 0, err
	}

	var msgs []model.ChatMessage
	if err := q.Order("sent_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&msgs).Error; err != nil {
		return []model.ChatMessage{}, 0, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

const chatThreadsSQL = `
SELECT t.user_id, u.full_name, u.phone,
       t.message AS last_message, t.is_admin AS last_is_admin, t.sent_at AS last_message_at
FROM (
    SELECT DISTINCT ON (user_id) user_id, message, is_admin, sent_at
    FROM chat_messages
    ORDER BY user_id, sent_at DESC, id DESC
) t
JOIN users u ON u.id = t.user_id
ORDER BY t.sent_at DESC
LIMIT ? OFFSET ?`

// ユーザーごとの最新メッセージを新しい順に
func (r *ChatGormRepository) ListThreads(ctx context.Context, page, limit int) ([]repo.ChatThread, int64, error) {
	page, limit = normalizePage(page, limit, 100, 20)

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Distinct("user_id").
		Count(&total).Error; err != nil {
		return []repo.ChatThread{}, 0, err
	}

	var threads []repo.ChatThread
	if err := r.db.WithContext(ctx).
		Raw(chatThreadsSQL, limit, (page-1)*limit).
		Scan(&threads).Error; err != nil {
		return []repo.ChatThread{}, 0, err
	}
	return threads, total, nil
}
