package server

import (
	"net/http"

	"autoparts/internal/config"
	"autoparts/internal/handler"
	"autoparts/internal/middleware"
	"autoparts/internal/repository"

	"github.com/labstack/echo/v4"
)

func registerRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, health HealthCheck, routers []Router) {
	// JWT必須 + token_version一致
	user := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.TokenVersionGuard(userRepo),
	}
	guards := handler.Guards{
		User:  user,
		Admin: append(append([]echo.MiddlewareFunc{}, user...), middleware.AdminRoleGuard()),
	}

	e.GET("/health", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", middleware.PrometheusHandler())

	for _, r := range routers {
		r.RegisterRoutes(e, guards)
	}
}
