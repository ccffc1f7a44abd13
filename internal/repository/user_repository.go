package repository

import (
	"context"

	"autoparts/internal/domain/model"
)

type UserListFilter struct {
	Search string
	Page   int
	Limit  int
}

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（重複はErrDuplicate）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByEmailConfirmTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	// ユーザー情報の更新=>アクティブかどうか・ロールの変更・最後のログイン更新など
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error

	//管理者用
	List(ctx context.Context, f UserListFilter) ([]model.User, int64, error)
	Delete(ctx context.Context, userID int64) error
	DeleteMany(ctx context.Context, userIDs []int64) (int64, error)
}
