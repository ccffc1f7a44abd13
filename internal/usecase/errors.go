package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"autoparts/internal/domain/model"
)

var (
	//404
	ErrNotFound = errors.New("not found")
	//400 入力不正・重複登録など
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403 権限
	ErrForbidden  = errors.New("forbidden")
	ErrEmptyCart  = errors.New("cart is empty")
	ErrOtpExpired = errors.New("otp expired")
	ErrInvalidOtp = errors.New("invalid otp")
	//署名不一致
	ErrPaymentVerification = errors.New("payment verification failed")
	//SMS・決済ゲートウェイなど外部の失敗
	ErrExternalService = errors.New("external service error")
	//500
	ErrInternal = errors.New("internal error")
)

// handlerはStatusとMessageでレスポンスを作る。
// Errで元のエラー種別を保持するのでerrors.Is/Asが効く。
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func wrapErr(status int, kind error, message string) error {
	return &HTTPError{Status: status, Message: message, Err: kind}
}

func notFound(message string) error {
	return wrapErr(http.StatusNotFound, ErrNotFound, message)
}

func badRequest(message string) error {
	return wrapErr(http.StatusBadRequest, ErrValidation, message)
}

func unauthorized() error {
	return wrapErr(http.StatusUnauthorized, ErrUnauthorized, "unauthorized")
}

func dbError(err error) error {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: fmt.Errorf("%w: %v", ErrInternal, err)}
}

// どの商品が足りないかを持つ
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (requested %d, available %d)", e.Name, e.Requested, e.Available)
}

func insufficientStock(p model.Product, requested int64) error {
	ise := &InsufficientStockError{
		ProductID: p.ID,
		Name:      p.Name,
		Requested: requested,
		Available: p.Quantity,
	}
	return &HTTPError{Status: http.StatusConflict, Message: ise.Error(), Err: ise}
}

type InvalidTransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func invalidTransition(from, to model.OrderStatus) error {
	ite := &InvalidTransitionError{From: from, To: to}
	return &HTTPError{Status: http.StatusBadRequest, Message: ite.Error(), Err: ite}
}
