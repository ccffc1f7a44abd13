package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/infra/metrics"
	repo "autoparts/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const compensationTimeout = 5 * time.Second

type OrderConfig struct {
	UPIPayeeVPA  string
	UPIPayeeName string
	Currency     string
	// フロントのRazorpay Checkoutに渡す公開キー
	GatewayKeyID string
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	addresses repo.AddressRepository
	gateway   PaymentGateway
	cfg       OrderConfig
	clock     Clock
	logger    *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	addresses repo.AddressRepository,
	gateway PaymentGateway,
	cfg OrderConfig,
	clock Clock,
	logger *zap.Logger,
) *OrderUsecase {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &OrderUsecase{
		tx:        tx,
		users:     users,
		addresses: addresses,
		gateway:   gateway,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

type CheckoutInput struct {
	PaymentMethod  string
	Address        string
	AddressID      int64
	IdempotencyKey string
}

type CheckoutOutput struct {
	OrderID        int64           `json:"order_id"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentStatus  string          `json:"payment_status"`
	Status         string          `json:"status"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty"`
	GatewayKeyID   string          `json:"gateway_key_id,omitempty"`
	AmountPaise    int64           `json:"amount_paise,omitempty"`
	Currency       string          `json:"currency"`
	UpiIntent      string          `json:"upi_intent,omitempty"`
}

type RazorpayConfirmInput struct {
	OrderID          int64
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type UpiConfirmInput struct {
	OrderID int64
	TxnRef  string
}

type PaymentConfirmOutput struct {
	OrderID       int64  `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type TimelineOutput struct {
	Action            string    `json:"action"`
	Notes             string    `json:"notes,omitempty"`
	PerformedByUserID *int64    `json:"performed_by_user_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type OrderOutput struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	CustomerName   string            `json:"customer_name"`
	CustomerPhone  string            `json:"customer_phone"`
	Address        string            `json:"address"`
	Status         string            `json:"status"`
	PaymentMethod  string            `json:"payment_method"`
	PaymentStatus  string            `json:"payment_status"`
	Total          decimal.Decimal   `json:"total"`
	GatewayOrderID string            `json:"gateway_order_id,omitempty"`
	UpiTxnRef      string            `json:"upi_txn_ref,omitempty"`
	DeliveryOtp    string            `json:"delivery_otp,omitempty"`
	IsCancelled    bool              `json:"is_cancelled"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Items          []OrderItemOutput `json:"items"`
	Timeline       []TimelineOutput  `json:"timeline,omitempty"`
}

type OrderListOutput struct {
	Page   int           `json:"page"`
	Size   int           `json:"size"`
	Total  int64         `json:"total"`
	Orders []OrderOutput `json:"orders"`
}

// カートから注文を作る。
// 在庫チェック・注文作成・在庫減算・カート削除は1トランザクション。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, unauthorized()
	}
	method, ok := model.ParsePaymentMethod(strings.ToUpper(strings.TrimSpace(in.PaymentMethod)))
	if !ok {
		return CheckoutOutput{}, badRequest("invalid payment_method")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return CheckoutOutput{}, badRequest("invalid idempotency key")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckoutOutput{}, notFound("user not found")
	}
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}

	address, err := u.resolveAddress(ctx, user, in)
	if err != nil {
		return CheckoutOutput{}, err
	}

	var order model.Order
	replayed := false

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return dbError(err)
			}
			if found {
				order = existing
				replayed = true
				return nil
			}
		}

		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapErr(http.StatusBadRequest, ErrEmptyCart, "cart is empty")
		}
		if err != nil {
			return dbError(err)
		}
		lines, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return dbError(err)
		}
		if len(lines) == 0 {
			return wrapErr(http.StatusBadRequest, ErrEmptyCart, "cart is empty")
		}

		//書き込み前に全行の在庫を確認
		products := make(map[int64]model.Product, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			p, err := r.Products().FindByID(ctx, l.ProductID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
				return badRequest(fmt.Sprintf("product %d is no longer available", l.ProductID))
			}
			if err != nil {
				return dbError(err)
			}
			if l.Quantity > p.Quantity {
				return insufficientStock(p, l.Quantity)
			}
			products[p.ID] = p
			total = total.Add(l.LineTotal())
		}

		now := u.clock.Now()
		order = model.Order{
			UserID:        userID,
			CustomerName:  user.FullName,
			CustomerPhone: user.Phone,
			Address:       address,
			Total:         total,
			PaymentMethod: method,
			PaymentStatus: model.PaymentStatusPending,
			Status:        model.OrderStatusPlaced,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			return wrapErr(http.StatusConflict, ErrValidation, "duplicate request")
		}
		if err != nil {
			return dbError(err)
		}
		order.ID = orderID

		if err := appendTimeline(ctx, r, orderID, model.TimelineOrderPlaced, "", &userID, now); err != nil {
			return err
		}

		//スナップショット
		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, model.OrderItem{
				ProductID:           l.ProductID,
				ProductNameSnapshot: products[l.ProductID].Name,
				UnitPrice:           l.UnitPrice,
				Quantity:            l.Quantity,
				CreatedAt:           now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return dbError(err)
		}

		//在庫減算（同時注文で先に減っていたらここで失敗してロールバック）
		for _, l := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return dbError(err)
			}
			if !ok {
				p, err := r.Products().FindByID(ctx, l.ProductID)
				if err != nil {
					p = products[l.ProductID]
				}
				return insufficientStock(p, l.Quantity)
			}
		}

		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return dbError(err)
		}

		if method == model.PaymentMethodUPIIntent {
			if err := appendTimeline(ctx, r, orderID, model.TimelineUpiIntentGenerated, "", &userID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	if replayed {
		return u.checkoutOutput(order), nil
	}

	metrics.RecordOrderPlaced(string(method))
	u.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(method)),
		zap.String("total", order.Total.String()),
	)

	//ゲートウェイ呼び出しはTxの外
	if method.UsesGateway() {
		order, err = u.createGatewayOrder(ctx, order, userID)
		if err != nil {
			return CheckoutOutput{}, err
		}
	}

	return u.checkoutOutput(order), nil
}

// 住所: リクエスト → 保存済み住所ID → デフォルト住所 → プロフィール住所 → location
func (u *OrderUsecase) resolveAddress(ctx context.Context, user *model.User, in CheckoutInput) (string, error) {
	if s := strings.TrimSpace(in.Address); s != "" {
		return s, nil
	}

	if in.AddressID > 0 {
		a, err := u.addresses.FindByID(ctx, in.AddressID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && a.UserID != user.ID) {
			//他人の住所は「存在しない扱い」
			return "", notFound("address not found")
		}
		if err != nil {
			return "", dbError(err)
		}
		return a.Format(), nil
	}

	a, err := u.addresses.FindDefaultByUserID(ctx, user.ID)
	if err == nil {
		return a.Format(), nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", dbError(err)
	}

	if s := strings.TrimSpace(user.Address); s != "" {
		return s, nil
	}
	if s := strings.TrimSpace(user.Location); s != "" {
		return s, nil
	}
	return "", badRequest("delivery address is required")
}

func (u *OrderUsecase) createGatewayOrder(ctx context.Context, order model.Order, userID int64) (model.Order, error) {
	amount := toPaise(order.Total)
	receipt := fmt.Sprintf("ORD-%d", order.ID)

	gatewayOrderID, err := u.gateway.CreateOrder(ctx, amount, u.cfg.Currency, receipt)
	if err != nil {
		u.logger.Error("gateway create order failed", zap.Int64("order_id", order.ID), zap.Error(err))
		//リクエストのctxが切れていても在庫は戻す
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		cerr := u.compensateGatewayFailure(cctx, order.ID, userID)
		cancel()
		if cerr != nil {
			u.logger.Error("gateway failure compensation failed", zap.Int64("order_id", order.ID), zap.Error(cerr))
		}
		return order, wrapErr(http.StatusBadGateway, ErrExternalService, "payment gateway unavailable")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return dbError(err)
		}
		now := u.clock.Now()
		o.GatewayOrderID = gatewayOrderID
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}
		if err := appendTimeline(ctx, r, o.ID, model.TimelineGatewayOrderCreated, gatewayOrderID, &userID, now); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return order, err
	}
	return order, nil
}

// ゲートウェイで注文が作れなかったら、在庫を戻して注文を閉じる
func (u *OrderUsecase) compensateGatewayFailure(ctx context.Context, orderID int64, userID int64) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := releaseStock(ctx, r, &o); err != nil {
			return err
		}
		now := u.clock.Now()
		o.PaymentStatus = model.PaymentStatusFailed
		o.Status = model.OrderStatusCancelled
		o.IsCancelled = true
		o.CancelReason = "payment gateway unavailable"
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return err
		}
		metrics.RecordStockRollback("gateway_error")
		return appendTimeline(ctx, r, o.ID, model.TimelinePaymentFailed, "gateway order could not be created", &userID, now)
	})
}

// Razorpayの署名を検証して支払い済みにする。
// 不一致なら在庫を戻してFailedを確定させてからエラーを返す。
func (u *OrderUsecase) ConfirmRazorpayPayment(ctx context.Context, userID int64, in RazorpayConfirmInput) (PaymentConfirmOutput, error) {
	if userID <= 0 {
		return PaymentConfirmOutput{}, unauthorized()
	}
	if in.OrderID <= 0 {
		return PaymentConfirmOutput{}, badRequest("invalid order_id")
	}
	if strings.TrimSpace(in.GatewayPaymentID) == "" || strings.TrimSpace(in.Signature) == "" {
		return PaymentConfirmOutput{}, badRequest("payment id and signature are required")
	}

	var out PaymentConfirmOutput
	verified := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != userID) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		if !o.PaymentMethod.UsesGateway() || o.GatewayOrderID == "" {
			return badRequest("order has no gateway payment")
		}

		switch {
		case o.PaymentStatus == model.PaymentStatusPaid:
			verified = true
			out = confirmOutput(o, "payment already confirmed")
			return nil
		case o.PaymentStatus == model.PaymentStatusFailed:
			return badRequest("payment already failed")
		case o.IsCancelled:
			return badRequest("order is cancelled")
		}

		now := u.clock.Now()
		verified = (in.GatewayOrderID == "" || in.GatewayOrderID == o.GatewayOrderID) &&
			u.gateway.VerifyPaymentSignature(o.GatewayOrderID, in.GatewayPaymentID, in.Signature)

		if !verified {
			if err := releaseStock(ctx, r, &o); err != nil {
				return err
			}
			o.PaymentStatus = model.PaymentStatusFailed
			o.UpdatedAt = now
			if err := r.Orders().Save(ctx, o); err != nil {
				return dbError(err)
			}
			if err := appendTimeline(ctx, r, o.ID, model.TimelinePaymentFailed, "signature mismatch", &userID, now); err != nil {
				return err
			}
			out = confirmOutput(o, "payment verification failed")
			return nil
		}

		o.PaymentStatus = model.PaymentStatusPaid
		o.GatewayPaymentID = in.GatewayPaymentID
		o.GatewaySignature = in.Signature
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}
		if err := appendTimeline(ctx, r, o.ID, model.TimelinePaymentPaid, in.GatewayPaymentID, &userID, now); err != nil {
			return err
		}
		out = confirmOutput(o, "payment confirmed")
		return nil
	})
	if err != nil {
		return PaymentConfirmOutput{}, err
	}

	if !verified {
		metrics.RecordPaymentConfirmation("failed")
		metrics.RecordStockRollback("payment_failed")
		u.logger.Warn("payment signature mismatch", zap.Int64("order_id", in.OrderID), zap.Int64("user_id", userID))
		return PaymentConfirmOutput{}, wrapErr(http.StatusBadRequest, ErrPaymentVerification, "payment verification failed")
	}
	metrics.RecordPaymentConfirmation("paid")
	return out, nil
}

// UPIアプリで支払った取引番号を記録する
func (u *OrderUsecase) ConfirmUpiIntentPayment(ctx context.Context, userID int64, in UpiConfirmInput) (PaymentConfirmOutput, error) {
	if userID <= 0 {
		return PaymentConfirmOutput{}, unauthorized()
	}
	if in.OrderID <= 0 {
		return PaymentConfirmOutput{}, badRequest("invalid order_id")
	}
	txnRef := strings.TrimSpace(in.TxnRef)
	if txnRef == "" || len(txnRef) > 100 {
		return PaymentConfirmOutput{}, badRequest("invalid txn_ref")
	}

	var out PaymentConfirmOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != userID) {
			return notFound("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		if o.PaymentMethod != model.PaymentMethodUPIIntent {
			return badRequest("order is not a UPI intent order")
		}
		if o.PaymentStatus == model.PaymentStatusPaid {
			out = confirmOutput(o, "payment already confirmed")
			return nil
		}
		if o.PaymentStatus == model.PaymentStatusFailed || o.IsCancelled {
			return badRequest("order can no longer be paid")
		}

		now := u.clock.Now()
		o.UpiTxnRef = txnRef
		o.PaymentStatus = model.PaymentStatusPaid
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}
		if err := appendTimeline(ctx, r, o.ID, model.TimelinePaymentPaidUpi, txnRef, &userID, now); err != nil {
			return err
		}
		out = confirmOutput(o, "payment confirmed")
		return nil
	})
	if err != nil {
		return PaymentConfirmOutput{}, err
	}
	metrics.RecordPaymentConfirmation("paid")
	return out, nil
}

type gatewayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// payment.capturedだけ処理する。知らない注文・イベントは無視して200。
func (u *OrderUsecase) HandleGatewayWebhook(ctx context.Context, body []byte, signature string) error {
	if !u.gateway.VerifyWebhookSignature(body, signature) {
		return wrapErr(http.StatusBadRequest, ErrPaymentVerification, "invalid webhook signature")
	}

	var ev gatewayWebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return badRequest("invalid payload")
	}
	if ev.Event != "payment.captured" {
		u.logger.Debug("webhook event ignored", zap.String("event", ev.Event))
		return nil
	}
	entity := ev.Payload.Payment.Entity

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByGatewayOrderID(ctx, entity.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			u.logger.Warn("webhook for unknown order", zap.String("gateway_order_id", entity.OrderID))
			return nil
		}
		if err != nil {
			return dbError(err)
		}
		if o.PaymentStatus != model.PaymentStatusPending || o.IsCancelled {
			u.logger.Info("webhook capture ignored",
				zap.Int64("order_id", o.ID),
				zap.String("payment_status", string(o.PaymentStatus)),
				zap.Bool("cancelled", o.IsCancelled),
			)
			return nil
		}

		now := u.clock.Now()
		o.PaymentStatus = model.PaymentStatusPaid
		o.GatewayPaymentID = entity.ID
		o.UpdatedAt = now
		if err := r.Orders().Save(ctx, o); err != nil {
			return dbError(err)
		}
		metrics.RecordPaymentConfirmation("paid")
		return appendTimeline(ctx, r, o.ID, model.TimelinePaymentCaptured, entity.ID, nil, now)
	})
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, size int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, unauthorized()
	}
	page, size = normalizePaging(page, size)

	out := OrderListOutput{Page: page, Size: size, Orders: []OrderOutput{}}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, size)
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, badRequest("invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != userID) {
			//他人の注文は「存在しない扱い」にする
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

func (u *OrderUsecase) checkoutOutput(o model.Order) CheckoutOutput {
	out := CheckoutOutput{
		OrderID:        o.ID,
		Total:          o.Total,
		PaymentMethod:  string(o.PaymentMethod),
		PaymentStatus:  string(o.PaymentStatus),
		Status:         string(o.Status),
		GatewayOrderID: o.GatewayOrderID,
		Currency:       u.cfg.Currency,
	}
	if o.PaymentMethod == model.PaymentMethodUPIIntent {
		out.UpiIntent = u.upiIntent(o)
	}
	if o.PaymentMethod.UsesGateway() && o.GatewayOrderID != "" {
		out.GatewayKeyID = u.cfg.GatewayKeyID
		out.AmountPaise = toPaise(o.Total)
	}
	return out
}

// upi://pay?pa=..&pn=..&am=..&cu=INR&tn=Order%20{id}
func (u *OrderUsecase) upiIntent(o model.Order) string {
	q := []struct{ k, v string }{
		{"pa", u.cfg.UPIPayeeVPA},
		{"pn", u.cfg.UPIPayeeName},
		{"am", o.Total.StringFixed(2)},
		{"cu", u.cfg.Currency},
		{"tn", fmt.Sprintf("Order %d", o.ID)},
	}
	parts := make([]string, 0, len(q))
	for _, kv := range q {
		parts = append(parts, kv.k+"="+upiEscaper.Replace(url.QueryEscape(kv.v)))
	}
	return "upi://pay?" + strings.Join(parts, "&")
}

// UPIアプリは+を空白と解釈しないものがある。VPAの@はそのまま。
var upiEscaper = strings.NewReplacer("+", "%20", "%40", "@")

// ルピー → パイサ
func toPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func confirmOutput(o model.Order, msg string) PaymentConfirmOutput {
	return PaymentConfirmOutput{
		OrderID:       o.ID,
		PaymentStatus: string(o.PaymentStatus),
		Status:        string(o.Status),
		Message:       msg,
	}
}

// チェックアウトで確保した在庫を戻す。1注文につき1回だけ。
func releaseStock(ctx context.Context, r repo.TxRepos, o *model.Order) error {
	if o.StockReleased {
		return nil
	}
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return dbError(err)
	}
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return dbError(err)
		}
	}
	o.StockReleased = true
	return nil
}

func appendTimeline(ctx context.Context, r repo.TxRepos, orderID int64, action, notes string, by *int64, now time.Time) error {
	if err := r.Timeline().Append(ctx, model.OrderTimeline{
		OrderID:           orderID,
		Action:            action,
		Notes:             notes,
		PerformedByUserID: by,
		CreatedAt:         now,
	}); err != nil {
		return dbError(err)
	}
	return nil
}

// 一覧の明細はまとめて1クエリで取る
func appendOrderSummaries(ctx context.Context, r repo.TxRepos, orders []model.Order, out *OrderListOutput) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
	if err != nil {
		return dbError(err)
	}
	for _, o := range orders {
		out.Orders = append(out.Orders, toOrderOutput(o, itemsByOrder[o.ID], nil))
	}
	return nil
}

func loadOrderDetail(ctx context.Context, r repo.TxRepos, o model.Order) (OrderOutput, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, dbError(err)
	}
	timeline, err := r.Timeline().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, dbError(err)
	}
	return toOrderOutput(o, items, timeline), nil
}

func toOrderOutput(o model.Order, items []model.OrderItem, timeline []model.OrderTimeline) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	var outTimeline []TimelineOutput
	for _, t := range timeline {
		outTimeline = append(outTimeline, TimelineOutput{
			Action:            t.Action,
			Notes:             t.Notes,
			PerformedByUserID: t.PerformedByUserID,
			CreatedAt:         t.CreatedAt,
		})
	}

	return OrderOutput{
		ID:             o.ID,
		UserID:         o.UserID,
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		Address:        o.Address,
		Status:         string(o.Status),
		PaymentMethod:  string(o.PaymentMethod),
		PaymentStatus:  string(o.PaymentStatus),
		Total:          o.Total,
		GatewayOrderID: o.GatewayOrderID,
		UpiTxnRef:      o.UpiTxnRef,
		DeliveryOtp:    o.DeliveryOtp,
		IsCancelled:    o.IsCancelled,
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          outItems,
		Timeline:       outTimeline,
	}
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
