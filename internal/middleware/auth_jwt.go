package middleware

import (
	"net/http"
	"strings"

	"autoparts/internal/infra/token"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
	CtxUserPhoneKey    = "user_phone"    // string
	CtxUserEmailKey    = "user_email"    // string
)

// bearerAuth用のJWT検証ミドルウェア。
// websocketのupgradeだけは ?token= も受け付ける（ブラウザはヘッダを付けられない）。
func AuthJWT(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken, ok := extractToken(c.Request())
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			claims, err := token.Parse(rawToken, key)
			if err != nil || claims.TokenVersion < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUserRoleKey, string(claims.Role))
			c.Set(CtxTokenVersionKey, claims.TokenVersion)
			c.Set(CtxUserPhoneKey, claims.Phone)
			c.Set(CtxUserEmailKey, claims.Email)

			return next(c)
		}
	}
}

func extractToken(r *http.Request) (string, bool) {
	//Authorizationヘッダを取得
	authz := r.Header.Get("Authorization")
	if authz == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			t := strings.TrimSpace(r.URL.Query().Get("token"))
			return t, t != ""
		}
		return "", false
	}

	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	rawToken := strings.TrimSpace(parts[1])
	return rawToken, rawToken != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
