package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/repository"

	"go.uber.org/zap"
)

const (
	loginOtpDigits = 6
	loginOtpTTL    = 5 * time.Minute
	// これを超えて間違えたらOTPを破棄して再送させる
	maxOtpAttempts = 5
)

var (
	ErrOtpExpired         = errors.New("otp expired")
	ErrInvalidOtp         = errors.New("invalid otp")
	ErrUnknownUser        = errors.New("user not found")
	ErrTooManyOtpAttempts = errors.New("too many otp attempts, request a new code")
)

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type CodeGenerator interface {
	NewCode(digits int) (string, error)
}

// OTPのハッシュ化と照合
type SecretHasher interface {
	Hash(plain string) (string, error)
	Verify(plain string, hashed string) bool
}

type SendOtpOutput struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

type VerifyOtpInput struct {
	Phone     string
	Code      string
	UserAgent string
}

// 電話番号OTPログイン。初回はユーザーを作る。
type PhoneOtpUsecase struct {
	userRepo repository.UserRepository
	sms      SMSSender
	codes    CodeGenerator
	hasher   SecretHasher
	sessions *SessionIssuer
	clock    Clock
	logger   *zap.Logger
}

func NewPhoneOtpUsecase(
	userRepo repository.UserRepository,
	sms SMSSender,
	codes CodeGenerator,
	hasher SecretHasher,
	sessions *SessionIssuer,
	clock Clock,
	logger *zap.Logger,
) *PhoneOtpUsecase {
	return &PhoneOtpUsecase{
		userRepo: userRepo,
		sms:      sms,
		codes:    codes,
		hasher:   hasher,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

func (u *PhoneOtpUsecase) SendOtp(ctx context.Context, rawPhone string) (SendOtpOutput, error) {
	phone, ok := NormalizePhone(rawPhone)
	if !ok {
		return SendOtpOutput{}, ErrInvalidPhone
	}

	now := u.clock.Now()
	user, err := u.userRepo.FindByPhone(ctx, phone)
	isNew := false
	if errors.Is(err, repository.ErrNotFound) {
		user = &model.User{
			FullName:  "User",
			Phone:     phone,
			Role:      model.RoleUser,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		isNew = true
	} else if err != nil {
		return SendOtpOutput{}, err
	}
	if !user.IsActive {
		return SendOtpOutput{}, ErrUserInactive
	}

	code, err := u.codes.NewCode(loginOtpDigits)
	if err != nil {
		return SendOtpOutput{}, err
	}
	hash, err := u.hasher.Hash(code)
	if err != nil {
		return SendOtpOutput{}, err
	}
	expires := now.Add(loginOtpTTL)
	user.OtpHash = hash
	user.OtpExpiresAt = &expires
	user.OtpAttempts = 0
	user.UpdatedAt = now

	if isNew {
		err = u.userRepo.Create(ctx, user)
	} else {
		err = u.userRepo.Update(ctx, user)
	}
	if err != nil {
		return SendOtpOutput{}, err
	}

	//SMSの失敗はログだけ
	if err := u.sms.Send(ctx, phone, fmt.Sprintf("[AutoParts] Your OTP is %s", code)); err != nil {
		u.logger.Warn("otp sms failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return SendOtpOutput{Phone: phone, ExpiresAt: expires, Message: "OTP sent successfully"}, nil
}

func (u *PhoneOtpUsecase) VerifyOtp(ctx context.Context, in VerifyOtpInput) (LoginOutput, LoginSideEffect, error) {
	var out LoginOutput
	var side LoginSideEffect

	phone, ok := NormalizePhone(in.Phone)
	if !ok {
		return out, side, ErrInvalidPhone
	}
	if in.Code == "" {
		return out, side, ErrInvalidOtp
	}

	user, err := u.userRepo.FindByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return out, side, ErrUnknownUser
	}
	if err != nil {
		return out, side, err
	}

	now := u.clock.Now()
	if user.OtpExpiresAt == nil || now.After(*user.OtpExpiresAt) {
		return out, side, ErrOtpExpired
	}
	if !u.hasher.Verify(in.Code, user.OtpHash) {
		return out, side, u.recordFailedAttempt(ctx, user, now)
	}
	if !user.IsActive {
		return out, side, ErrUserInactive
	}

	//使い捨て
	user.OtpHash = ""
	user.OtpExpiresAt = nil
	user.OtpAttempts = 0
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return out, side, err
	}

	tok, side, err := u.sessions.Issue(ctx, user, in.UserAgent, now)
	if err != nil {
		return out, side, err
	}

	out.User = *user
	out.Token = tok
	return out, side, nil
}

func (u *PhoneOtpUsecase) recordFailedAttempt(ctx context.Context, user *model.User, now time.Time) error {
	user.OtpAttempts++
	exceeded := user.OtpAttempts >= maxOtpAttempts
	if exceeded {
		user.OtpHash = ""
		user.OtpExpiresAt = nil
		user.OtpAttempts = 0
	}
	user.UpdatedAt = now
	if err := u.userRepo.Update(ctx, user); err != nil {
		return err
	}
	if exceeded {
		u.logger.Warn("otp attempts exceeded", zap.Int64("user_id", user.ID))
		return ErrTooManyOtpAttempts
	}
	return ErrInvalidOtp
}
