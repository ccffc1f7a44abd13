package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/repository"

	"go.uber.org/zap"
)

type UserDTO struct {
	ID             int64      `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Location       string     `json:"location"`
	Address        string     `json:"address"`
	Role           string     `json:"role"`
	EmailConfirmed bool       `json:"email_confirmed"`
	IsActive       bool       `json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type UserListOutput struct {
	Page  int       `json:"page"`
	Size  int       `json:"size"`
	Total int64     `json:"total"`
	Users []UserDTO `json:"users"`
}

type ProfileUpdateInput struct {
	FullName *string `json:"full_name"`
	Location *string `json:"location"`
	Address  *string `json:"address"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

type UserUsecase struct {
	users  repository.UserRepository
	rtRepo repository.RefreshTokenRepository
	clock  Clock
	logger *zap.Logger
}

func NewUserUsecase(users repository.UserRepository, rtRepo repository.RefreshTokenRepository, clock Clock, logger *zap.Logger) *UserUsecase {
	return &UserUsecase{users: users, rtRepo: rtRepo, clock: clock, logger: logger}
}

func (u *UserUsecase) Profile(ctx context.Context, userID int64) (UserDTO, error) {
	user, err := u.activeUser(ctx, userID)
	if err != nil {
		return UserDTO{}, err
	}
	return ToUserDTO(user), nil
}

func (u *UserUsecase) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdateInput) (UserDTO, error) {
	user, err := u.activeUser(ctx, userID)
	if err != nil {
		return UserDTO{}, err
	}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" || len(name) > 255 {
			return UserDTO{}, badRequest("invalid full_name")
		}
		user.FullName = name
	}
	if in.Location != nil {
		user.Location = strings.TrimSpace(*in.Location)
	}
	if in.Address != nil {
		user.Address = strings.TrimSpace(*in.Address)
	}
	user.UpdatedAt = u.clock.Now()

	if err := u.users.Update(ctx, user); err != nil {
		return UserDTO{}, dbError(err)
	}
	return ToUserDTO(user), nil
}

func (u *UserUsecase) List(ctx context.Context, search string, page, size int) (UserListOutput, error) {
	page, size = normalizePaging(page, size)

	users, total, err := u.users.List(ctx, repository.UserListFilter{
		Search: strings.TrimSpace(search),
		Page:   page,
		Limit:  size,
	})
	if err != nil {
		return UserListOutput{}, dbError(err)
	}

	out := UserListOutput{Page: page, Size: size, Total: total, Users: make([]UserDTO, 0, len(users))}
	for i := range users {
		out.Users = append(out.Users, ToUserDTO(&users[i]))
	}
	return out, nil
}

// 自分自身は消せない
func (u *UserUsecase) Delete(ctx context.Context, adminID, userID int64) error {
	if userID <= 0 {
		return badRequest("invalid user_id")
	}
	if userID == adminID {
		return badRequest("cannot delete yourself")
	}

	err := u.users.Delete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return dbError(err)
	}
	u.logger.Info("user deleted", zap.Int64("user_id", userID), zap.Int64("admin_id", adminID))
	return nil
}

func (u *UserUsecase) DeleteMany(ctx context.Context, adminID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, badRequest("ids required")
	}
	for _, id := range ids {
		if id <= 0 {
			return 0, badRequest("invalid user_id")
		}
		if id == adminID {
			return 0, badRequest("cannot delete yourself")
		}
	}

	n, err := u.users.DeleteMany(ctx, ids)
	if err != nil {
		return 0, dbError(err)
	}
	u.logger.Info("users deleted", zap.Int64("count", n), zap.Int64("admin_id", adminID))
	return n, nil
}

// token_versionを上げてリフレッシュトークンを全削除
func (u *UserUsecase) ForceLogout(ctx context.Context, targetUserID int64) (ForceLogoutResponse, error) {
	if targetUserID <= 0 {
		return ForceLogoutResponse{}, badRequest("invalid user_id")
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ForceLogoutResponse{}, notFound("user not found")
		}
		return ForceLogoutResponse{}, dbError(err)
	}

	if err := u.rtRepo.DeleteAllByUserID(ctx, targetUserID); err != nil {
		return ForceLogoutResponse{}, dbError(err)
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil {
		return ForceLogoutResponse{}, dbError(err)
	}

	return ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

func (u *UserUsecase) activeUser(ctx context.Context, userID int64) (*model.User, error) {
	if userID <= 0 {
		return nil, unauthorized()
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorized()
	}
	if err != nil {
		return nil, dbError(err)
	}
	if !user.IsActive {
		return nil, wrapErr(http.StatusForbidden, ErrForbidden, "user is inactive")
	}
	return user, nil
}

// model.UserをAPI返却用DTOに変換。
func ToUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		Phone:          u.Phone,
		Location:       u.Location,
		Address:        u.Address,
		Role:           string(u.Role),
		EmailConfirmed: u.EmailConfirmed,
		IsActive:       u.IsActive,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}
