package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"autoparts/internal/repository"
	"autoparts/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
	Otp    string `json:"otp"`
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type verifyDeliveryOtpRequest struct {
	Otp string `json:"otp"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, guards Guards) {
	admin := e.Group("/admin/orders", guards.Admin...)

	admin.GET("", h.list)
	admin.GET("/:id", h.get)
	admin.POST("/:id/approve", h.approve)
	admin.POST("/:id/out-for-delivery", h.outForDelivery)
	admin.POST("/:id/deliver", h.deliver)
	admin.POST("/:id/cancel", h.cancel)
	admin.POST("/:id/generate-otp", h.generateOtp)
	admin.POST("/:id/verify-otp", h.verifyOtp)

	// 旧フロント互換の汎用エンドポイント
	e.PUT("/api/order/:id/status", h.updateStatus, guards.Admin...)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid paging"})
	}

	status := c.QueryParam("status")

	var userID *int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		userID = &id
	}

	fromPtr, ok := queryTime(c, "from")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	toPtr, ok := queryTime(c, "to")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: status,
		UserID: userID,
		From:   fromPtr,
		To:     toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) get(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	out, err := h.uc.Get(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) approve(c echo.Context) error {
	return h.transition(c, h.uc.Approve)
}

func (h *AdminOrderHandler) outForDelivery(c echo.Context) error {
	return h.transition(c, h.uc.MarkOutForDelivery)
}

func (h *AdminOrderHandler) deliver(c echo.Context) error {
	return h.transition(c, h.uc.MarkDelivered)
}

func (h *AdminOrderHandler) cancel(c echo.Context) error {
	var req cancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	return h.transition(c, func(ctx context.Context, adminID, orderID int64) (usecase.OrderOutput, error) {
		return h.uc.Cancel(ctx, adminID, orderID, req.Reason)
	})
}

func (h *AdminOrderHandler) generateOtp(c echo.Context) error {
	adminID, orderID, ok := adminAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	out, err := h.uc.GenerateDeliveryOtp(c.Request().Context(), adminID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) verifyOtp(c echo.Context) error {
	var req verifyDeliveryOtpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	return h.transition(c, func(ctx context.Context, adminID, orderID int64) (usecase.OrderOutput, error) {
		return h.uc.VerifyDeliveryOtp(ctx, adminID, orderID, req.Otp)
	})
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	return h.transition(c, func(ctx context.Context, adminID, orderID int64) (usecase.OrderOutput, error) {
		return h.uc.UpdateStatus(ctx, adminID, orderID, usecase.AdminUpdateOrderStatusInput{
			Status: req.Status,
			Otp:    req.Otp,
			Reason: req.Reason,
		})
	})
}

// 状態遷移系の共通処理
func (h *AdminOrderHandler) transition(c echo.Context, fn func(ctx context.Context, adminID, orderID int64) (usecase.OrderOutput, error)) error {
	adminID, orderID, ok := adminAndOrder(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	out, err := fn(c.Request().Context(), adminID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func adminAndOrder(c echo.Context) (int64, int64, bool) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return 0, 0, false
	}
	// 操作した管理者IDはタイムラインに残す
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return 0, 0, false
	}
	return adminID, orderID, true
}

// RFC3339 か YYYY-MM-DD
func queryTime(c echo.Context, name string) (*time.Time, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	if tm, err := time.Parse(time.RFC3339, v); err == nil {
		return &tm, true
	}
	tm, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, false
	}
	return &tm, true
}
