package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoparts/internal/config"
	"autoparts/internal/handler"
	"autoparts/internal/infra/cache"
	"autoparts/internal/infra/chathub"
	"autoparts/internal/infra/db"
	"autoparts/internal/infra/logging"
	"autoparts/internal/infra/notify"
	"autoparts/internal/infra/payment"
	infraRepo "autoparts/internal/infra/repository"
	"autoparts/internal/infra/security"
	"autoparts/internal/infra/token"
	"autoparts/internal/middleware"
	"autoparts/internal/server"
	"autoparts/internal/usecase"
	auth "autoparts/internal/usecase/auth_usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

func main() {
	// .envは無くてもよい（本番は環境変数）
	_ = godotenv.Load(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 金額はJSONで数値として返す
	decimal.MarshalJSONWithoutQuotes = true

	//DB接続
	gormDB, err := db.Connect(db.Options{
		DSN:          cfg.DSN(),
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		LogSQL:       cfg.IsDev(),
	})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	// 商品キャッシュ（REDIS_ADDRが無ければ無効）
	var productCache usecase.ProductCache = cache.NoopProductCache{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.InitRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, product cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			productCache = cache.NewRedisProductCache(rdb, cfg.Redis.TTL)
		}
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	partTypeRepo := infraRepo.NewPartTypeGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	chatRepo := infraRepo.NewChatGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	clock := usecase.SystemClock{}
	idGen := &uuidGenerator{}
	hasher := security.NewBcryptHasher(12)
	codes := security.NumericCodeGenerator{}
	issuer := token.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTTL)
	sms := notify.NewTwilioSMSSender(cfg.Twilio, logger)
	mailer := notify.NewSMTPEmailSender(cfg.SMTP, logger)
	gateway := payment.NewRazorpayClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)
	hub := chathub.New(logger)
	defer hub.Close()

	//Usecase生成
	sessions := auth.NewSessionIssuer(rtRepo, issuer, idGen, cfg.RefreshTTL)
	registerUC := auth.NewRegisterUserUsecase(userRepo, hasher, mailer, clock, cfg.APIBaseURL, logger)
	loginUC := auth.NewLoginUsecase(userRepo, hasher, sessions, clock)
	otpUC := auth.NewPhoneOtpUsecase(userRepo, sms, codes, hasher, sessions, clock, logger)
	refreshUC := auth.NewRefreshUsecase(userRepo, rtRepo, sessions, clock, logger)
	accountUC := auth.NewAccountUsecase(userRepo, rtRepo, hasher, mailer, clock, cfg.FEURL, logger)

	userUC := usecase.NewUserUsecase(userRepo, rtRepo, clock, logger)
	addressUC := usecase.NewAddressUsecase(addressRepo, clock)
	productUC := usecase.NewProductUsecase(productRepo, partTypeRepo, inventoryRepo, productCache, clock, logger)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txManager, userRepo, addressRepo, gateway, usecase.OrderConfig{
		UPIPayeeVPA:  cfg.UPIPayeeVPA,
		UPIPayeeName: cfg.UPIPayeeName,
		Currency:     "INR",
		GatewayKeyID: cfg.Razorpay.KeyID,
	}, clock, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, userRepo, sms, mailer, codes, hasher, clock, logger, cfg.ExposeDeliveryOtp)
	chatUC := usecase.NewChatUsecase(chatRepo, userRepo, hub, clock, logger)

	//Handler生成
	routers := []server.Router{
		handler.NewAuthHandler(registerUC, loginUC, otpUC, refreshUC, accountUC, cfg.RefreshTTL, !cfg.IsDev(), middleware.AuthRateLimiter(cfg.AuthRateLimit)),
		handler.NewAdminUserHandler(userUC),
		handler.NewAddressHandler(addressUC),
		handler.NewProductHandler(productUC),
		handler.NewAdminProductHandler(productUC),
		handler.NewCartHandler(cartUC),
		handler.NewOrderHandler(orderUC),
		handler.NewAdminOrderHandler(adminOrderUC),
		handler.NewChatHandler(chatUC, hub),
	}

	e := server.New(cfg, logger, userRepo, pingDB(gormDB), routers...)

	//Server起動
	addr := cfg.Port
	if addr == "" || addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Run(ctx, e, addr, logger)
}

func pingDB(gdb *gorm.DB) server.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
}
