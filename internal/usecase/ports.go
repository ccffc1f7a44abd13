package usecase

import (
	"context"
	"time"

	"autoparts/internal/domain/model"
)

// 現在の時間
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// 決済ゲートウェイ（Razorpay）
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (string, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// OTPのハッシュ化・照合（bcrypt）
type SecretHasher interface {
	Hash(plain string) (string, error)
	Verify(plain string, hashed string) bool
}

type CodeGenerator interface {
	NewCode(digits int) (string, error)
}

type ProductCache interface {
	Get(ctx context.Context, id int64) (model.Product, bool, error)
	Set(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, ids ...int64) error
}

// チャットの新着をwebsocketへ流す
type ChatBroadcaster interface {
	Publish(msg model.ChatMessage)
}
