package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/infra/security"
	"autoparts/internal/repository"
)

// handlerからusecaseに渡す入力
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

// token 形（JwtAccessToken相当）
type JwtAccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
	RefreshToken string `json:"refresh_token"`
}

// handlerがJSONにして返す
type LoginOutput struct {
	User  model.User     `json:"user"`
	Token JwtAccessToken `json:"token"`
}

// handlerがCookieに詰めるために必要な値
type LoginSideEffect struct {
	PlainRefreshToken string
	RefreshExpiresAt  time.Time
}

// メールまたはパスワードが違う
var ErrInvalidCredentials = errors.New("invalid credentials")

// 停止済みユーザー
var ErrUserInactive = errors.New("user is inactive")

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(user *model.User, now time.Time) (token string, expiresAt time.Time, err error)
}

// 入力パスワードと保存したハッシュを比べる約束
type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

// access + refreshの発行（ログイン・OTP・リフレッシュ共通）
type SessionIssuer struct {
	rtRepo     repository.RefreshTokenRepository
	issuer     AccessTokenIssuer
	idGen      IDGenerator
	refreshTTL time.Duration
}

func NewSessionIssuer(
	rtRepo repository.RefreshTokenRepository,
	issuer AccessTokenIssuer,
	idGen IDGenerator,
	refreshTTL time.Duration,
) *SessionIssuer {
	return &SessionIssuer{rtRepo: rtRepo, issuer: issuer, idGen: idGen, refreshTTL: refreshTTL}
}

func (s *SessionIssuer) Issue(ctx context.Context, user *model.User, userAgent string, now time.Time) (JwtAccessToken, LoginSideEffect, error) {
	//AccessToken発行
	accessToken, accessExp, err := s.issuer.Issue(user, now)
	if err != nil {
		return JwtAccessToken{}, LoginSideEffect{}, err
	}

	//RefreshToken生成
	plainRefresh, err := security.RandomToken(32)
	if err != nil {
		return JwtAccessToken{}, LoginSideEffect{}, err
	}

	refresh := &model.RefreshToken{
		ID:        s.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: security.HashToken(plainRefresh),
		UserAgent: truncate(userAgent, 512),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.rtRepo.Create(ctx, refresh); err != nil {
		return JwtAccessToken{}, LoginSideEffect{}, err
	}

	tok := JwtAccessToken{
		AccessToken:  accessToken,
		ExpiresIn:    int(accessExp.Sub(now).Seconds()),
		TokenVersion: user.TokenVersion,
		RefreshToken: plainRefresh,
	}
	return tok, LoginSideEffect{PlainRefreshToken: plainRefresh, RefreshExpiresAt: refresh.ExpiresAt}, nil
}

type LoginUsecase struct {
	userRepo repository.UserRepository
	verifier PasswordVerifier
	sessions *SessionIssuer
	clock    Clock
}

func NewLoginUsecase(
	userRepo repository.UserRepository,
	verifier PasswordVerifier,
	sessions *SessionIssuer,
	clock Clock,
) *LoginUsecase {
	return &LoginUsecase{
		userRepo: userRepo,
		verifier: verifier,
		sessions: sessions,
		clock:    clock,
	}
}

// ログイン処理を実行する
func (u *LoginUsecase) Execute(ctx context.Context, in LoginInput) (LoginOutput, LoginSideEffect, error) {
	var out LoginOutput
	var side LoginSideEffect

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return out, side, ErrInvalidInput
	}

	//emailでユーザー取得
	user, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return out, side, ErrInvalidCredentials
		}
		return out, side, err
	}

	//パスワード照合（OTPだけのユーザーはハッシュが空なので通らない）
	if ok := u.verifier.Verify(in.Password, user.PasswordHash); !ok {
		return out, side, ErrInvalidCredentials
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return out, side, ErrUserInactive
	}

	now := u.clock.Now()
	tok, side, err := u.sessions.Issue(ctx, user, in.UserAgent, now)
	if err != nil {
		return out, side, err
	}

	//最終ログイン時刻更新
	user.LastLoginAt = &now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return out, side, err
	}

	out.User = *user
	out.Token = tok
	return out, side, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
