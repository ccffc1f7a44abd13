package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPostgres*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret  string        // JWT署名シークレット
	AccessTTL  time.Duration // アクセストークン（60分）
	RefreshTTL time.Duration // リフレッシュトークン（14日）

	GoEnv      string // dev/prod
	LogLevel   string
	APIDomain  string // APIドメイン（cookieで使う）
	APIBaseURL string // メールのリンク用
	FEURL      string // フロントURL（CORS・パスワード再設定リンク）

	Razorpay RazorpayConfig
	Twilio   TwilioConfig
	SMTP     SMTPConfig
	Redis    RedisConfig

	UPIPayeeVPA  string // UPI受取先
	UPIPayeeName string

	// 配達OTPの平文を注文に載せて顧客に見せるか
	ExposeDeliveryOtp bool

	// /auth/send-otp, /auth/login の1IPあたり秒間リクエスト数
	AuthRateLimit float64
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

func (c RazorpayConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	smtpPort, err := atoiDefault("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	accessMin, err := atoiDefault("ACCESS_TOKEN_TTL_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	refreshDays, err := atoiDefault("REFRESH_TOKEN_TTL_DAYS", 14)
	if err != nil {
		return Config{}, err
	}
	cacheSec, err := atoiDefault("PRODUCT_CACHE_TTL_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}
	rateLimit, err := floatDefault("AUTH_RATE_LIMIT", 1)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		AccessTTL:  time.Duration(accessMin) * time.Minute,
		RefreshTTL: time.Duration(refreshDays) * 24 * time.Hour,

		GoEnv:      getenv("GO_ENV", "prod"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		APIDomain:  os.Getenv("API_DOMAIN"),
		APIBaseURL: strings.TrimRight(getenv("API_BASE_URL", "http://localhost:8080"), "/"),
		FEURL:      strings.TrimRight(getenv("FE_URL", "http://localhost:3000"), "/"),

		Razorpay: RazorpayConfig{
			KeyID:         os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
			WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
			BaseURL:       strings.TrimRight(getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com"), "/"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: getenv("SMTP_FROM_NAME", "AutoParts"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			TTL:      time.Duration(cacheSec) * time.Second,
		},

		UPIPayeeVPA:  getenv("UPI_PAYEE_VPA", "merchant@upi"),
		UPIPayeeName: getenv("UPI_PAYEE_NAME", "AutoParts"),

		ExposeDeliveryOtp: os.Getenv("EXPOSE_DELIVERY_OTP") == "true",
		AuthRateLimit:     rateLimit,
	}

	//必須チェック
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv != "dev" && cfg.GoEnv != "prod" {
		return Config{}, fmt.Errorf("GO_ENV must be dev or prod")
	}
	// 署名なしのwebhookで支払い済みにされないように
	if cfg.Razorpay.Enabled() && cfg.Razorpay.WebhookSecret == "" {
		return Config{}, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required when RAZORPAY_KEY_ID is set")
	}

	return cfg, nil
}

// DATABASE_URL が無ければ個別設定から組み立てる
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}
