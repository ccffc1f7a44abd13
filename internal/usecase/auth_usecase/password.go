package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"autoparts/internal/infra/security"
	"autoparts/internal/repository"

	"go.uber.org/zap"
)

const resetTokenTTL = time.Hour

// 確認・リセットのトークンが無効または期限切れ
var ErrInvalidToken = errors.New("invalid or expired token")

type ResetPasswordInput struct {
	Email       string
	Token       string
	NewPassword string
}

// メール確認とパスワードリセット
type AccountUsecase struct {
	userRepo repository.UserRepository
	rtRepo   repository.RefreshTokenRepository
	hasher   PasswordHasher
	mailer   EmailSender
	clock    Clock
	feURL    string
	logger   *zap.Logger
}

func NewAccountUsecase(
	userRepo repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	hasher PasswordHasher,
	mailer EmailSender,
	clock Clock,
	feURL string,
	logger *zap.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		userRepo: userRepo,
		rtRepo:   rtRepo,
		hasher:   hasher,
		mailer:   mailer,
		clock:    clock,
		feURL:    strings.TrimRight(feURL, "/"),
		logger:   logger,
	}
}

func (u *AccountUsecase) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	user, err := u.userRepo.FindByEmailConfirmTokenHash(ctx, security.HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	now := u.clock.Now()
	if user.EmailConfirmExpiresAt == nil || now.After(*user.EmailConfirmExpiresAt) {
		return ErrInvalidToken
	}

	user.EmailConfirmed = true
	user.EmailConfirmTokenHash = ""
	user.EmailConfirmExpiresAt = nil
	user.UpdatedAt = now
	return u.userRepo.Update(ctx, user)
}

// アカウントの有無は返さない
func (u *AccountUsecase) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmailFormat(email) {
		return ErrInvalidEmailFormat
	}

	user, err := u.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	plain, err := security.RandomToken(32)
	if err != nil {
		return err
	}
	now := u.clock.Now()
	expires := now.Add(resetTokenTTL)
	user.ResetTokenHash = security.HashToken(plain)
	user.ResetTokenExpiresAt = &expires
	user.UpdatedAt = now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s&email=%s", u.feURL, url.QueryEscape(plain), url.QueryEscape(email))
	body := fmt.Sprintf(`<p>We received a request to reset your password.</p><p><a href="%s">Reset password</a></p><p>The link expires in 1 hour. If you did not request this, ignore this e-mail.</p>`, link)
	if err := u.mailer.Send(ctx, email, "Reset your AutoParts password", body); err != nil {
		u.logger.Warn("reset email failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// 成功したら全セッションを無効にする
func (u *AccountUsecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	token := strings.TrimSpace(in.Token)
	if email == "" || token == "" {
		return ErrInvalidToken
	}
	if len(in.NewPassword) < 8 {
		return ErrPasswordTooShort
	}
	if isWeakPassword(in.NewPassword) {
		return ErrWeakPassword
	}

	user, err := u.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	now := u.clock.Now()
	if user.ResetTokenHash == "" || subtle.ConstantTimeCompare([]byte(user.ResetTokenHash), []byte(security.HashToken(token))) != 1 {
		return ErrInvalidToken
	}
	if user.ResetTokenExpiresAt == nil || now.After(*user.ResetTokenExpiresAt) {
		return ErrInvalidToken
	}

	hashed, err := u.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.ResetTokenHash = ""
	user.ResetTokenExpiresAt = nil
	user.UpdatedAt = now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := u.userRepo.IncrementTokenVersion(ctx, user.ID); err != nil {
		return err
	}
	return u.rtRepo.DeleteAllByUserID(ctx, user.ID)
}
