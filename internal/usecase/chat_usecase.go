package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"autoparts/internal/domain/model"
	repo "autoparts/internal/repository"

	"go.uber.org/zap"
)

const maxChatMessageLen = 2000

// 会話は顧客ごとに1本。管理者の返信も顧客のUserIDで保存する。
type ChatUsecase struct {
	chats  repo.ChatRepository
	users  repo.UserRepository
	hub    ChatBroadcaster
	clock  Clock
	logger *zap.Logger
}

func NewChatUsecase(chats repo.ChatRepository, users repo.UserRepository, hub ChatBroadcaster, clock Clock, logger *zap.Logger) *ChatUsecase {
	return &ChatUsecase{chats: chats, users: users, hub: hub, clock: clock, logger: logger}
}

type ChatConversationOutput struct {
	UserID   int64               `json:"user_id"`
	Page     int                 `json:"page"`
	Size     int                 `json:"size"`
	Total    int64               `json:"total"`
	Messages []model.ChatMessage `json:"messages"`
}

type ChatThreadOutput struct {
	UserID        int64     `json:"user_id"`
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone"`
	LastMessage   string    `json:"last_message"`
	LastIsAdmin   bool      `json:"last_is_admin"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type ChatThreadListOutput struct {
	Page    int                `json:"page"`
	Size    int                `json:"size"`
	Total   int64              `json:"total"`
	Threads []ChatThreadOutput `json:"threads"`
}

func (u *ChatUsecase) SendUserMessage(ctx context.Context, userID int64, text string) (model.ChatMessage, error) {
	if userID <= 0 {
		return model.ChatMessage{}, unauthorized()
	}
	return u.send(ctx, userID, userID, false, text)
}

func (u *ChatUsecase) SendAdminMessage(ctx context.Context, adminID, targetUserID int64, text string) (model.ChatMessage, error) {
	if adminID <= 0 {
		return model.ChatMessage{}, unauthorized()
	}
	if err := u.checkUser(ctx, targetUserID); err != nil {
		return model.ChatMessage{}, err
	}
	return u.send(ctx, targetUserID, adminID, true, text)
}

func (u *ChatUsecase) send(ctx context.Context, ownerID, senderID int64, isAdmin bool, text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, badRequest("message required")
	}
	if utf8.RuneCountInString(text) > maxChatMessageLen {
		return model.ChatMessage{}, badRequest("message too long (max 2000)")
	}

	msg, err := u.chats.Create(ctx, model.ChatMessage{
		UserID:       ownerID,
		SenderUserID: senderID,
		IsAdmin:      isAdmin,
		Message:      text,
		SentAt:       u.clock.Now(),
	})
	if err != nil {
		return model.ChatMessage{}, dbError(err)
	}

	u.hub.Publish(msg)
	u.logger.Debug("chat message sent",
		zap.Int64("user_id", ownerID),
		zap.Int64("sender_id", senderID),
		zap.Bool("is_admin", isAdmin),
	)
	return msg, nil
}

func (u *ChatUsecase) MyConversation(ctx context.Context, userID int64, page, size int) (ChatConversationOutput, error) {
	if userID <= 0 {
		return ChatConversationOutput{}, unauthorized()
	}
	return u.conversation(ctx, userID, page, size)
}

func (u *ChatUsecase) AdminConversation(ctx context.Context, userID int64, page, size int) (ChatConversationOutput, error) {
	if err := u.checkUser(ctx, userID); err != nil {
		return ChatConversationOutput{}, err
	}
	return u.conversation(ctx, userID, page, size)
}

func (u *ChatUsecase) conversation(ctx context.Context, userID int64, page, size int) (ChatConversationOutput, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}

	msgs, total, err := u.chats.ListConversation(ctx, userID, page, size)
	if err != nil {
		return ChatConversationOutput{}, dbError(err)
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return ChatConversationOutput{UserID: userID, Page: page, Size: size, Total: total, Messages: msgs}, nil
}

// 管理者の会話一覧（最新メッセージ順）
func (u *ChatUsecase) ListThreads(ctx context.Context, page, size int) (ChatThreadListOutput, error) {
	page, size = normalizePaging(page, size)

	threads, total, err := u.chats.ListThreads(ctx, page, size)
	if err != nil {
		return ChatThreadListOutput{}, dbError(err)
	}

	out := ChatThreadListOutput{Page: page, Size: size, Total: total, Threads: make([]ChatThreadOutput, 0, len(threads))}
	for _, t := range threads {
		out.Threads = append(out.Threads, ChatThreadOutput(t))
	}
	return out, nil
}

func (u *ChatUsecase) checkUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return badRequest("invalid user_id")
	}
	_, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}
