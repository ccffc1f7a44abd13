package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/config"
	"autoparts/internal/infra/metrics"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type TwilioSMSSender struct {
	cfg    config.TwilioConfig
	api    *twilio.RestClient
	logger *zap.Logger
}

func NewTwilioSMSSender(cfg config.TwilioConfig, logger *zap.Logger) *TwilioSMSSender {
	return newTwilioSMSSender(cfg, &http.Client{Timeout: 10 * time.Second}, logger)
}

func newTwilioSMSSender(cfg config.TwilioConfig, hc *http.Client, logger *zap.Logger) *TwilioSMSSender {
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Client: &twilioclient.Client{
			Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
			HTTPClient:  hc,
		},
	})
	return &TwilioSMSSender{cfg: cfg, api: api, logger: logger}
}

// 未設定なら送らずに警告だけ出す
func (s *TwilioSMSSender) Send(ctx context.Context, to, body string) error {
	if !s.cfg.Enabled() {
		s.logger.Warn("sms skipped: twilio is not configured", zap.String("to", maskPhone(to)))
		metrics.RecordNotification("sms", "skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetPathAccountSid(s.cfg.AccountSID)
	params.SetTo(to)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(body)

	if _, err := s.api.Api.CreateMessage(params); err != nil {
		metrics.RecordNotification("sms", "failed")
		return fmt.Errorf("twilio send: %w", err)
	}

	metrics.RecordNotification("sms", "sent")
	return nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
