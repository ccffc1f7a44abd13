package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"autoparts/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// アクセストークンに載せる値
type Claims struct {
	UserID       int64
	Role         model.Role
	TokenVersion int
	Phone        string
	Email        string
}

type JWTIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func NewJWTIssuer(secret string, accessTTL time.Duration) *JWTIssuer {
	if accessTTL <= 0 {
		accessTTL = 60 * time.Minute
	}
	return &JWTIssuer{secret: []byte(secret), accessTTL: accessTTL}
}

func (i *JWTIssuer) Issue(user *model.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"role":  string(user.Role),
		"tv":    user.TokenVersion,
		"phone": user.Phone,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// 署名・期限・必須クレームを検証する
func Parse(tokenStr string, secret []byte) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}

	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, errors.New("invalid sub")
	}

	role, _ := mc["role"].(string)
	if role == "" {
		return Claims{}, errors.New("invalid role")
	}

	// jsonの数値はfloat64
	tvFloat, ok := mc["tv"].(float64)
	if !ok {
		return Claims{}, errors.New("invalid tv")
	}

	phone, _ := mc["phone"].(string)
	email, _ := mc["email"].(string)

	return Claims{
		UserID:       userID,
		Role:         model.Role(role),
		TokenVersion: int(tvFloat),
		Phone:        phone,
		Email:        email,
	}, nil
}
