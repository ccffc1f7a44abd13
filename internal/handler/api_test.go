package handler_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"autoparts/internal/config"
	"autoparts/internal/domain/model"
	"autoparts/internal/handler"
	"autoparts/internal/infra/notify"
	"autoparts/internal/infra/payment"
	"autoparts/internal/infra/security"
	"autoparts/internal/infra/token"
	"autoparts/internal/server"
	"autoparts/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	jwtSecret     = "handler-secret"
	webhookSecret = "whsec_test"
	customerID    = int64(1)
	adminID       = int64(99)
)

type testAPI struct {
	db *memDB
	e  *echo.Echo
	// Razorpayの注文作成に渡ってきたreceipt
	mu       sync.Mutex
	receipts []string
}

// 本物のusecase・JWTガード・Razorpayクライアントをメモリ上のDBで組む
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{db: newMemDB()}
	api.db.addUser(model.User{ID: customerID, FullName: "Ravi Kumar", Phone: "+919876543210", Address: "12 MG Road, Pune", Role: model.RoleUser, IsActive: true})
	api.db.addUser(model.User{ID: adminID, FullName: "Admin", Role: model.RoleAdmin, IsActive: true})

	rzp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		api.mu.Lock()
		receipt, _ := req["receipt"].(string)
		api.receipts = append(api.receipts, receipt)
		api.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_T1","status":"created"}`))
	}))
	t.Cleanup(rzp.Close)

	logger := zap.NewNop()
	users := memUsers{db: api.db}
	gateway := payment.NewRazorpayClient(rzp.URL, "rzp_test", "key-secret", webhookSecret)
	sms := notify.NewTwilioSMSSender(config.TwilioConfig{}, logger)
	mailer := notify.NewSMTPEmailSender(config.SMTPConfig{}, logger)

	cartUC := usecase.NewCartUsecase(memCarts{db: api.db}, memCartItems{db: api.db}, memProducts{db: api.db})
	orderUC := usecase.NewOrderUsecase(api.db, users, memAddresses{}, gateway, usecase.OrderConfig{
		UPIPayeeVPA:  "autoparts@upi",
		UPIPayeeName: "Auto Parts",
		GatewayKeyID: "rzp_test",
	}, usecase.SystemClock{}, logger)
	adminUC := usecase.NewAdminOrderUsecase(api.db, users, sms, mailer, security.NumericCodeGenerator{}, security.NewBcryptHasher(4), usecase.SystemClock{}, logger, true)

	cfg := config.Config{JWTSecret: jwtSecret, FEURL: "http://localhost:3000"}
	api.e = server.New(cfg, logger, users, nil,
		handler.NewCartHandler(cartUC),
		handler.NewOrderHandler(orderUC),
		handler.NewAdminOrderHandler(adminUC),
	)
	return api
}

func (api *testAPI) gatewayReceipts() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]string(nil), api.receipts...)
}

func (api *testAPI) bearer(t *testing.T, userID int64) string {
	t.Helper()
	u, err := memUsers{db: api.db}.FindByID(t.Context(), userID)
	require.NoError(t, err)
	raw, _, err := token.NewJWTIssuer(jwtSecret, time.Minute).Issue(u, time.Now())
	require.NoError(t, err)
	return "Bearer " + raw
}

// bodyがstringならそのまま、それ以外はJSONにして送る
func (api *testAPI) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	return rec
}

func (api *testAPI) as(t *testing.T, userID int64) map[string]string {
	return map[string]string{echo.HeaderAuthorization: api.bearer(t, userID)}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
