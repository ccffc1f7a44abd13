package handler

import (
	"errors"
	"net/http"
	"time"

	auth "autoparts/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh"

type AuthHandler struct {
	registerUC   *auth.RegisterUserUsecase // 会員登録usecase
	loginUC      *auth.LoginUsecase        // ログインusecase
	otpUC        *auth.PhoneOtpUsecase
	refreshUC    *auth.RefreshUsecase
	accountUC    *auth.AccountUsecase
	refreshTTL   time.Duration // refresh cookie の有効期限
	cookieSecure bool
	// send-otp / verify-otp / login 用（nilなら無制限）
	limiter echo.MiddlewareFunc
}

// DIコンストラクタ
func NewAuthHandler(
	registerUC *auth.RegisterUserUsecase,
	loginUC *auth.LoginUsecase,
	otpUC *auth.PhoneOtpUsecase,
	refreshUC *auth.RefreshUsecase,
	accountUC *auth.AccountUsecase,
	refreshTTL time.Duration,
	cookieSecure bool,
	limiter echo.MiddlewareFunc,
) *AuthHandler {
	return &AuthHandler{
		registerUC:   registerUC,
		loginUC:      loginUC,
		otpUC:        otpUC,
		refreshUC:    refreshUC,
		accountUC:    accountUC,
		refreshTTL:   refreshTTL,
		cookieSecure: cookieSecure,
		limiter:      limiter,
	}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, _ Guards) {
	var limited []echo.MiddlewareFunc
	if h.limiter != nil {
		limited = append(limited, h.limiter)
	}

	g := e.Group("/auth")
	g.POST("/send-otp", h.SendOtp, limited...)
	g.POST("/verify-otp", h.VerifyOtp, limited...)
	g.POST("/register", h.Register)
	g.GET("/confirm-email", h.ConfirmEmail)
	g.POST("/login", h.Login, limited...)
	g.POST("/refresh-token", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)
}

type sendOtpRequest struct {
	Phone string `json:"phone"`
}

type verifyOtpRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	// 旧フロントは otp で送ってくる
	Otp string `json:"otp"`
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	Location        string `json:"location"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// 本文にもcookieにも無ければ空
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) SendOtp(c echo.Context) error {
	var req sendOtpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.otpUC.SendOtp(c.Request().Context(), req.Phone)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) VerifyOtp(c echo.Context) error {
	var req verifyOtpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	code := req.Code
	if code == "" {
		code = req.Otp
	}

	out, side, err := h.otpUC.VerifyOtp(c.Request().Context(), auth.VerifyOtpInput{
		Phone:     req.Phone,
		Code:      code,
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setRefreshCookie(c, side)
	return c.JSON(http.StatusOK, out)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		Mobile:          req.Mobile,
		Location:        req.Location,
	})
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	if err := h.accountUC.ConfirmEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "email confirmed"})
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	// User-Agentを取得（refreshtokenに紐付ける）
	out, side, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setRefreshCookie(c, side)
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	plain := h.refreshTokenFrom(c)
	if plain == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid refresh token"})
	}

	tok, side, err := h.refreshUC.Execute(c.Request().Context(), auth.RefreshInput{
		RefreshToken: plain,
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrSecurityIncident) || errors.Is(err, auth.ErrInvalidRefreshToken) {
			h.clearRefreshCookie(c)
		}
		return writeAuthError(c, err)
	}

	h.setRefreshCookie(c, side)
	return c.JSON(http.StatusOK, tok)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.refreshUC.Logout(c.Request().Context(), h.refreshTokenFrom(c)); err != nil {
		return writeAuthError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, SuccessResponse{Message: "logged out"})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.accountUC.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return writeAuthError(c, err)
	}
	// 登録の有無は返さない
	return c.JSON(http.StatusOK, SuccessResponse{Message: "if the email is registered, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	err := h.accountUC.ResetPassword(c.Request().Context(), auth.ResetPasswordInput{
		Email:       req.Email,
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "password updated"})
}

// 本文のrefresh_tokenを優先、無ければcookie
func (h *AuthHandler) refreshTokenFrom(c echo.Context) string {
	var req refreshRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(refreshCookieName); err == nil {
		return ck.Value
	}
	return ""
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, side auth.LoginSideEffect) {
	exp := side.RefreshExpiresAt
	if exp.IsZero() {
		exp = time.Now().Add(h.refreshTTL)
	}
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    side.PlainRefreshToken,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// auth系のsentinelをHTTPに寄せる
func authErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmailFormat),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrNameRequired),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrEmailAlreadyExists),
		errors.Is(err, auth.ErrPhoneAlreadyExists),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrOtpExpired),
		errors.Is(err, auth.ErrInvalidOtp),
		errors.Is(err, auth.ErrUnknownUser),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrSecurityIncident):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrUserInactive):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrTooManyOtpAttempts):
		return http.StatusTooManyRequests, err.Error()
	}
	return 0, ""
}

func writeAuthError(c echo.Context, err error) error {
	if status, msg := authErrorStatus(err); status != 0 {
		return c.JSON(status, ErrorResponse{Error: msg})
	}
	return writeError(c, err)
}
