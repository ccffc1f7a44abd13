package auth

import (
	"context"
	"errors"
	"strings"

	"autoparts/internal/infra/security"
	"autoparts/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// 使用済みトークンの再利用（盗難の疑い）
	ErrSecurityIncident = errors.New("security incident")
)

type RefreshInput struct {
	RefreshToken string
	UserAgent    string
}

// リフレッシュトークンのローテーション。使用済みが来たら全セッション破棄。
type RefreshUsecase struct {
	userRepo repository.UserRepository
	rtRepo   repository.RefreshTokenRepository
	sessions *SessionIssuer
	clock    Clock
	logger   *zap.Logger
}

func NewRefreshUsecase(
	userRepo repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	sessions *SessionIssuer,
	clock Clock,
	logger *zap.Logger,
) *RefreshUsecase {
	return &RefreshUsecase{
		userRepo: userRepo,
		rtRepo:   rtRepo,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

func (u *RefreshUsecase) Execute(ctx context.Context, in RefreshInput) (JwtAccessToken, LoginSideEffect, error) {
	plain := strings.TrimSpace(in.RefreshToken)
	if plain == "" {
		return JwtAccessToken{}, LoginSideEffect{}, ErrInvalidRefreshToken
	}

	//DB照合
	rt, err := u.rtRepo.FindByTokenHash(ctx, security.HashToken(plain))
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return JwtAccessToken{}, LoginSideEffect{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return JwtAccessToken{}, LoginSideEffect{}, err
	}

	now := u.clock.Now()

	//revoked
	if rt.RevokedAt != nil {
		return JwtAccessToken{}, LoginSideEffect{}, ErrInvalidRefreshToken
	}

	//used済みが来たら replay → 全削除
	if rt.UsedAt != nil {
		u.revokeAll(ctx, rt.UserID, "refresh token reuse detected")
		return JwtAccessToken{}, LoginSideEffect{}, ErrSecurityIncident
	}

	//期限切れ
	if !now.Before(rt.ExpiresAt) {
		return JwtAccessToken{}, LoginSideEffect{}, ErrInvalidRefreshToken
	}

	user, err := u.userRepo.FindByID(ctx, rt.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return JwtAccessToken{}, LoginSideEffect{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return JwtAccessToken{}, LoginSideEffect{}, err
	}
	if !user.IsActive {
		return JwtAccessToken{}, LoginSideEffect{}, ErrUserInactive
	}

	//旧tokenをusedにする（同時に2回来たら片方は失敗）
	if err := u.rtRepo.MarkUsed(ctx, rt.ID, now); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			u.revokeAll(ctx, rt.UserID, "concurrent refresh detected")
			return JwtAccessToken{}, LoginSideEffect{}, ErrSecurityIncident
		}
		return JwtAccessToken{}, LoginSideEffect{}, err
	}

	return u.sessions.Issue(ctx, user, in.UserAgent, now)
}

// ログアウト。無効なトークンでも成功扱い。
func (u *RefreshUsecase) Logout(ctx context.Context, refreshToken string) error {
	plain := strings.TrimSpace(refreshToken)
	if plain == "" {
		return nil
	}
	rt, err := u.rtRepo.FindByTokenHash(ctx, security.HashToken(plain))
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := u.rtRepo.Revoke(ctx, rt.ID, u.clock.Now()); err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return err
	}
	return nil
}

func (u *RefreshUsecase) revokeAll(ctx context.Context, userID int64, reason string) {
	u.logger.Warn(reason, zap.Int64("user_id", userID))
	if err := u.rtRepo.DeleteAllByUserID(ctx, userID); err != nil {
		u.logger.Error("failed to revoke refresh tokens", zap.Int64("user_id", userID), zap.Error(err))
	}
}
