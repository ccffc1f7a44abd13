package handler

import (
	"net/http"
	"strconv"

	"autoparts/internal/middleware"
	"autoparts/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ルート登録で使うミドルウェアの組
type Guards struct {
	// JWT + token_version
	User []echo.MiddlewareFunc
	// User + ADMIN
	Admin []echo.MiddlewareFunc
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Success { message: string }
type SuccessResponse struct {
	Message string `json:"message"`
}

type bulkIDsRequest struct {
	IDs []int64 `json:"ids"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	return id, ok && id > 0
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return role == "ADMIN"
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// 空ならdef。数値でなければfalse。
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// page と size（旧パラメータ名limitも受け付ける）
func pageParams(c echo.Context, defSize int) (int, int, bool) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return 0, 0, false
	}
	name := "size"
	if c.QueryParam(name) == "" && c.QueryParam("limit") != "" {
		name = "limit"
	}
	size, ok := queryInt(c, name, defSize)
	if !ok {
		return 0, 0, false
	}
	return page, size, true
}
