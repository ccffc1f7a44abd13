package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autoparts/internal/config"
	"autoparts/internal/handler"
	"autoparts/internal/middleware"
	"autoparts/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// handlerはこれを満たせばルート登録できる
type Router interface {
	RegisterRoutes(e *echo.Echo, guards handler.Guards)
}

// DB疎通など。nilならチェックしない。
type HealthCheck func(ctx context.Context) error

// echoを組み立てる（ミドルウェア + 全ルート）
func New(cfg config.Config, logger *zap.Logger, userRepo repository.UserRepository, health HealthCheck, routers ...Router) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FEURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, "X-Idempotency-Key"},
		AllowCredentials: true,
	}))

	registerRoutes(e, cfg, userRepo, health, routers)
	return e
}

// 起動してctxがキャンセルされたらgraceful shutdown
func Run(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
