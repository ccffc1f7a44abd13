package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/infra/metrics"
	repo "autoparts/internal/repository"

	"go.uber.org/zap"
)

const (
	deliveryOtpDigits = 6
	deliveryOtpTTL    = 10 * time.Minute
	defaultCancelNote = "Cancelled by admin"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	sms       SMSSender
	email     EmailSender
	codes     CodeGenerator
	hasher    SecretHasher
	clock     Clock
	logger    *zap.Logger
	exposeOtp bool
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	sms SMSSender,
	email EmailSender,
	codes CodeGenerator,
	hasher SecretHasher,
	clock Clock,
	logger *zap.Logger,
	exposeOtp bool,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:        tx,
		users:     users,
		sms:       sms,
		email:     email,
		codes:     codes,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
		exposeOtp: exposeOtp,
	}
}

// PUT /api/order/:id/status の入力
type AdminUpdateOrderStatusInput struct {
	Status string
	Otp    string
	Reason string
}

type DeliveryOtpOutput struct {
	OrderID   int64     `json:"order_id"`
	ExpiresAt time.Time `json:"expires_at"`
	// EXPOSE_DELIVERY_OTPのときだけ
	Otp string `json:"otp,omitempty"`
}

// 遷移と一緒に行う処理
type statusChange struct {
	Reason string
	Otp    string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	if f.Page < 1 {
		return OrderListOutput{}, badRequest("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, badRequest("invalid limit")
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return OrderListOutput{}, badRequest("invalid status")
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, badRequest("from must be before to")
	}

	out := OrderListOutput{Page: f.Page, Size: f.Limit, Orders: []OrderOutput{}}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(err)
		}
		out.Total = total

		return appendOrderSummaries(ctx, r, orders, &out)
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *AdminOrderUsecase) Get(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, badRequest("invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		out, err = loadOrderDetail(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *AdminOrderUsecase) Approve(ctx context.Context, adminID, orderID int64) (OrderOutput, error) {
	return u.changeStatus(ctx, adminID, orderID, model.OrderStatusApproved, statusChange{})
}

func (u *AdminOrderUsecase) MarkOutForDelivery(ctx context.Context, adminID, orderID int64) (OrderOutput, error) {
	return u.changeStatus(ctx, adminID, orderID, model.OrderStatusOutForDelivery, statusChange{})
}

func (u *AdminOrderUsecase) MarkDelivered(ctx context.Context, adminID, orderID int64) (OrderOutput, error) {
	return u.changeStatus(ctx, adminID, orderID, model.OrderStatusDelivered, statusChange{})
}

// キャンセル（在庫はまだ戻していなければ戻す）
func (u *AdminOrderUsecase) Cancel(ctx context.Context, adminID, orderID int64, reason string) (OrderOutput, error) {
	return u.changeStatus(ctx, adminID, orderID, model.OrderStatusCancelled, statusChange{Reason: reason})
}

// 汎用のステータス更新。Deliveredでotpがあれば先に照合する。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, adminID, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	to, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return OrderOutput{}, badRequest("invalid status")
	}

	change := statusChange{Reason: in.Reason}
	if to == model.OrderStatusDelivered {
		change.Otp = strings.TrimSpace(in.Otp)
	}
	return u.changeStatus(ctx, adminID, orderID, to, change)
}

func (u *AdminOrderUsecase) changeStatus(ctx context.Context, adminID, orderID int64, to model.OrderStatus, change statusChange) (OrderOutput, error) {
	if adminID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, badRequest("invalid id")
	}

	var out OrderOutput
	var from model.OrderStatus
	released := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		from = o.Status

		// すでに同じなら何もしない
		if o.Status == to {
			out, err = loadOrderDetail(ctx, r, o)
			return err
		}
		if !o.Status.CanTransitionTo(to) {
			return invalidTransition(o.Status, to)
		}
		//在庫を戻した注文・支払い失敗の注文はキャンセルしかできない
		if to != model.OrderStatusCancelled && (o.StockReleased || o.PaymentStatus == model.PaymentStatusFailed) {
			return invalidTransition(o.Status, to)
		}

		now := u.clock.Now()
		var action, notes string

		switch to {
		case model.OrderStatusApproved:
			action = model.TimelineOrderApproved
		case model.OrderStatusOutForDelivery:
			action = model.TimelineOutForDelivery
		case model.OrderStatusDelivered:
			if change.Otp != "" {
				if err := u.verifyOtpTx(ctx, r, &o, adminID, change.Otp, now); err != nil {
					return err
				}
			}
			o.DeliveryOtp = ""
			action = model.TimelineOrderDelivered
		case model.OrderStatusCancelled:
			reason := strings.TrimSpace(change.Reason)
			if reason == "" {
				reason = defaultCancelNote
			}
			released = !o.StockReleased
			if err := releaseStock(ctx, r, &o); err != nil {
				return err
			}
			o.IsCancelled = true
			o.CancelReason = reason
			o.DeliveryOtp = ""
			action = model.TimelineOrderCancelled
			notes = reason
		}

		o.Status = to
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}
		if err := appendTimeline(ctx, r, o.ID, action, notes, &adminID, now); err != nil {
			return err
		}

		out, err = loadOrderDetail(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if released {
		metrics.RecordStockRollback("cancelled")
	}
	if from != to {
		u.logger.Info("order status changed",
			zap.Int64("order_id", orderID),
			zap.Int64("admin_id", adminID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	return out, nil
}

// 配達OTPを発行する。再発行は前のものを上書き。
func (u *AdminOrderUsecase) GenerateDeliveryOtp(ctx context.Context, adminID, orderID int64) (DeliveryOtpOutput, error) {
	if adminID <= 0 {
		return DeliveryOtpOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return DeliveryOtpOutput{}, badRequest("invalid id")
	}

	code, err := u.codes.NewCode(deliveryOtpDigits)
	if err != nil {
		return DeliveryOtpOutput{}, wrapErr(http.StatusInternalServerError, ErrInternal, "failed to generate otp")
	}
	hash, err := u.hasher.Hash(code)
	if err != nil {
		return DeliveryOtpOutput{}, wrapErr(http.StatusInternalServerError, ErrInternal, "failed to generate otp")
	}

	var order model.Order
	var expiresAt time.Time

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		if o.Status.IsTerminal() {
			return badRequest(fmt.Sprintf("order is already %s", o.Status))
		}

		now := u.clock.Now()
		expiresAt = now.Add(deliveryOtpTTL)
		if err := r.DeliveryOtps().Upsert(ctx, model.OrderDeliveryOtp{
			OrderID:   o.ID,
			OtpHash:   hash,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return dbError(err)
		}

		if u.exposeOtp {
			o.DeliveryOtp = code
			o.UpdatedAt = now
			if err := r.Orders().Save(ctx, o); err != nil {
				return dbError(err)
			}
		}

		if err := appendTimeline(ctx, r, o.ID, model.TimelineDeliveryOtpGenerated, "", &adminID, now); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return DeliveryOtpOutput{}, err
	}

	// 通知はcommit後。失敗してもOTPは有効。
	u.sendDeliveryOtp(ctx, order, code)

	out := DeliveryOtpOutput{OrderID: order.ID, ExpiresAt: expiresAt}
	if u.exposeOtp {
		out.Otp = code
	}
	return out, nil
}

func (u *AdminOrderUsecase) VerifyDeliveryOtp(ctx context.Context, adminID, orderID int64, otp string) (OrderOutput, error) {
	if adminID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, badRequest("invalid id")
	}
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return OrderOutput{}, badRequest("otp required")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}

		now := u.clock.Now()
		if err := u.verifyOtpTx(ctx, r, &o, adminID, otp, now); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}

		out, err = loadOrderDetail(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 照合して検証済みにする。注文の保存は呼び出し側。
func (u *AdminOrderUsecase) verifyOtpTx(ctx context.Context, r repo.TxRepos, o *model.Order, adminID int64, otp string, now time.Time) error {
	row, err := r.DeliveryOtps().FindActiveByOrderID(ctx, o.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return wrapErr(http.StatusBadRequest, ErrInvalidOtp, "invalid otp")
	}
	if err != nil {
		return dbError(err)
	}
	if now.After(row.ExpiresAt) {
		return wrapErr(http.StatusBadRequest, ErrOtpExpired, "otp expired")
	}
	if !u.hasher.Verify(otp, row.OtpHash) {
		return wrapErr(http.StatusBadRequest, ErrInvalidOtp, "invalid otp")
	}

	//同じコードは2回通さない
	if err := r.DeliveryOtps().MarkVerified(ctx, row.ID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return wrapErr(http.StatusBadRequest, ErrInvalidOtp, "invalid otp")
		}
		return dbError(err)
	}

	o.DeliveryOtp = ""
	return appendTimeline(ctx, r, o.ID, model.TimelineDeliveryOtpVerified, "", &adminID, now)
}

func (u *AdminOrderUsecase) sendDeliveryOtp(ctx context.Context, o model.Order, code string) {
	if o.CustomerPhone != "" {
		body := fmt.Sprintf("[AutoParts] Your delivery OTP for order #%d is %s. Share it with the delivery agent only.", o.ID, code)
		if err := u.sms.Send(ctx, o.CustomerPhone, body); err != nil {
			u.logger.Warn("delivery otp sms failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}

	user, err := u.users.FindByID(ctx, o.UserID)
	if err != nil || user.Email == "" {
		return
	}
	subject := fmt.Sprintf("Delivery OTP for order #%d", o.ID)
	msg := fmt.Sprintf("<p>Hello %s,</p><p>Your delivery OTP for order <b>#%d</b> is <b>%s</b>.</p><p>It expires in %d minutes.</p>",
		html.EscapeString(user.FullName), o.ID, code, int(deliveryOtpTTL.Minutes()))
	if err := u.email.Send(ctx, user.Email, subject, msg); err != nil {
		u.logger.Warn("delivery otp email failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
