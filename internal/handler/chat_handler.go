package handler

import (
	"net/http"
	"strconv"

	"autoparts/internal/infra/chathub"
	"autoparts/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ChatHandler struct {
	uc  *usecase.ChatUsecase
	hub *chathub.Hub
}

func NewChatHandler(uc *usecase.ChatUsecase, hub *chathub.Hub) *ChatHandler {
	return &ChatHandler{uc: uc, hub: hub}
}

type chatSendRequest struct {
	Message string `json:"message"`
}

type adminChatSendRequest struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

func (h *ChatHandler) RegisterRoutes(e *echo.Echo, guards Guards) {
	g := e.Group("/chat", guards.User...)
	g.POST("/send", h.send)
	g.GET("/me", h.me)
	g.GET("/ws", h.ws)

	admin := e.Group("/chat/admin", guards.Admin...)
	admin.POST("/send", h.adminSend)
	admin.GET("/users", h.threads)
	admin.GET("/conversation", h.conversation)
}

func (h *ChatHandler) send(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	var req chatSendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	msg, err := h.uc.SendUserMessage(c.Request().Context(), userID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	page, size, ok := pageParams(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid paging"})
	}

	out, err := h.uc.MyConversation(c.Request().Context(), userID, page, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) adminSend(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	var req adminChatSendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	msg, err := h.uc.SendAdminMessage(c.Request().Context(), adminID, req.UserID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) threads(c echo.Context) error {
	page, size, ok := pageParams(c, 20)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid paging"})
	}
	out, err := h.uc.ListThreads(c.Request().Context(), page, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) conversation(c echo.Context) error {
	userID, err := strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}
	page, size, ok := pageParams(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid paging"})
	}
	out, err := h.uc.AdminConversation(c.Request().Context(), userID, page, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 顧客は自分の会話だけ。管理者は ?user_id= で1本、無ければ全会話。
func (h *ChatHandler) ws(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	topic := userID
	if isAdmin(c) {
		topic = chathub.AllConversations
		if v := c.QueryParam("user_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
			}
			topic = id
		}
	}

	conn, err := chathub.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgradeがエラー応答を書き込み済み
		return nil
	}
	h.hub.Serve(conn, topic)
	return nil
}
