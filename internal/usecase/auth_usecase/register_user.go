package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/infra/security"
	"autoparts/internal/repository"

	"go.uber.org/zap"
)

const emailConfirmTTL = 24 * time.Hour

// 会員登録の入力
type RegisterUserInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Mobile          string
	Location        string
}

// 会員登録の出力
type RegisterUserOutput struct {
	User    model.User `json:"user"`
	Message string     `json:"message"`
}

var (
	// 入力が不正
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrWeakPassword       = errors.New("weak password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidPhone       = errors.New("invalid mobile number")
	ErrInvalidInput       = errors.New("invalid input")

	// 重複（400で返す）
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrPhoneAlreadyExists = errors.New("mobile number already exists")
)

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// RegisterUserUsecaseは会員登録の処理。
type RegisterUserUsecase struct {
	userRepo   repository.UserRepository
	hasher     PasswordHasher
	mailer     EmailSender
	clock      Clock
	apiBaseURL string
	logger     *zap.Logger
}

// DI
func NewRegisterUserUsecase(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	mailer EmailSender,
	clock Clock,
	apiBaseURL string,
	logger *zap.Logger,
) *RegisterUserUsecase {
	return &RegisterUserUsecase{
		userRepo:   userRepo,
		hasher:     hasher,
		mailer:     mailer,
		clock:      clock,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		logger:     logger,
	}
}

// 会員登録実行
func (u *RegisterUserUsecase) Execute(ctx context.Context, in RegisterUserInput) (RegisterUserOutput, error) {
	var out RegisterUserOutput

	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)

	// emailの形式チェック
	if !isValidEmailFormat(email) {
		return out, ErrInvalidEmailFormat
	}
	if len(in.Password) < 8 {
		return out, ErrPasswordTooShort
	}
	if isWeakPassword(in.Password) {
		return out, ErrWeakPassword
	}
	if in.Password != in.ConfirmPassword {
		return out, ErrPasswordMismatch
	}
	if name == "" {
		return out, ErrNameRequired
	}
	phone, ok := NormalizePhone(in.Mobile)
	if !ok {
		return out, ErrInvalidPhone
	}

	// 重複チェック
	if _, err := u.userRepo.FindByEmail(ctx, email); err == nil {
		return out, ErrEmailAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return out, err
	}
	if _, err := u.userRepo.FindByPhone(ctx, phone); err == nil {
		return out, ErrPhoneAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return out, err
	}

	// パスワードをハッシュ化
	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return out, err
	}

	// 確認メール用トークン（DBにはハッシュだけ）
	plainToken, err := security.RandomToken(32)
	if err != nil {
		return out, err
	}

	now := u.clock.Now()
	expires := now.Add(emailConfirmTTL)

	user := &model.User{
		FullName:              name,
		Email:                 email,
		Phone:                 phone,
		Location:              strings.TrimSpace(in.Location),
		PasswordHash:          hashed,
		Role:                  model.RoleUser,
		EmailConfirmTokenHash: security.HashToken(plainToken),
		EmailConfirmExpiresAt: &expires,
		TokenVersion:          0,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	// DBへ保存（同時登録の一意制約違反もここで拾う）
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return out, ErrEmailAlreadyExists
		}
		return out, err
	}

	link := fmt.Sprintf("%s/auth/confirm-email?token=%s", u.apiBaseURL, url.QueryEscape(plainToken))
	body := fmt.Sprintf(`<p>Hello %s,</p><p>Please confirm your e-mail address:</p><p><a href="%s">Confirm e-mail</a></p><p>The link expires in 24 hours.</p>`,
		html.EscapeString(name), link)
	if err := u.mailer.Send(ctx, email, "Confirm your AutoParts account", body); err != nil {
		u.logger.Warn("confirmation email failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	out.User = *user
	out.Message = "registered. please confirm your e-mail"
	return out, nil
}

// メールチェック
func isValidEmailFormat(email string) bool {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return false
	}
	addr, err := mail.ParseAddress(trimmed)
	return err == nil && addr.Address == trimmed
}

// パスワードのよくある弱いパスワード
func isWeakPassword(password string) bool {
	normalized := strings.ToLower(strings.TrimSpace(password))

	weak := map[string]struct{}{
		"password":     {},
		"password123":  {},
		"123456789012": {},
		"1234567890":   {},
		"12345678":     {},
		"qwertyuiop":   {},
		"autoparts":    {},
	}

	_, ok := weak[normalized]
	return ok
}
