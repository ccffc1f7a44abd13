package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

var ErrGatewayDisabled = errors.New("payment gateway is not configured")

// razorpay-goの薄いラッパー。usecase.PaymentGatewayを満たす。
type RazorpayClient struct {
	api           *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

// baseURLは "https://api.razorpay.com"（/v1はSDKが付ける）
func NewRazorpayClient(baseURL, keyID, keySecret, webhookSecret string) *RazorpayClient {
	api := razorpay.NewClient(keyID, keySecret)
	if baseURL != "" {
		api.Order.Request.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &RazorpayClient{
		api:           api,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

// 金額はパイサ（最小単位）。戻り値はゲートウェイ側の注文ID。
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (string, error) {
	if c.keyID == "" || c.keySecret == "" {
		return "", ErrGatewayDisabled
	}
	// SDKはctxを受け取らないので呼ぶ前に見る
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := c.api.Order.Create(map[string]interface{}{
		"amount":          amountPaise,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return "", errors.New("razorpay create order: empty order id")
	}
	return id, nil
}

// hex(HMAC-SHA256(key_secret, "{order_id}|{payment_id}"))。大文字小文字は無視。
func (c *RazorpayClient) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if c.keySecret == "" || gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, normalizeSignature(signature), c.keySecret)
}

// webhook secret未設定なら常に不一致
func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), normalizeSignature(signature), c.webhookSecret)
}

func normalizeSignature(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
