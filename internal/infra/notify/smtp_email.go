package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"autoparts/internal/config"
	"autoparts/internal/infra/metrics"

	"go.uber.org/zap"
)

type SMTPEmailSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	// テストで差し替える
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmailSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPEmailSender {
	return &SMTPEmailSender{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// 未設定なら送らずに警告だけ出す
func (s *SMTPEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !s.cfg.Enabled() {
		s.logger.Warn("email skipped: smtp is not configured", zap.String("subject", subject))
		metrics.RecordNotification("email", "skipped")
		return nil
	}
	if strings.TrimSpace(to) == "" {
		metrics.RecordNotification("email", "skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.cfg.From, s.cfg.FromName, to, subject, htmlBody, time.Now())

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		metrics.RecordNotification("email", "failed")
		return fmt.Errorf("smtp send: %w", err)
	}
	metrics.RecordNotification("email", "sent")
	return nil
}

func buildMessage(from, fromName, to, subject, htmlBody string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
