package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of orders placed",
		},
		[]string{"payment_method"},
	)

	paymentConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Total number of payment confirmations by result",
		},
		[]string{"result"},
	)

	stockRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_rollbacks_total",
			Help: "Total number of orders whose reserved stock was returned",
		},
		[]string{"reason"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of outbound notifications",
		},
		[]string{"channel", "result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ordersPlacedTotal)
	prometheus.MustRegister(paymentConfirmationsTotal)
	prometheus.MustRegister(stockRollbacksTotal)
	prometheus.MustRegister(notificationsTotal)
}

func RecordOrderPlaced(paymentMethod string) {
	ordersPlacedTotal.WithLabelValues(paymentMethod).Inc()
}

// result: paid / failed
func RecordPaymentConfirmation(result string) {
	paymentConfirmationsTotal.WithLabelValues(result).Inc()
}

// reason: payment_failed / cancelled / gateway_error
func RecordStockRollback(reason string) {
	stockRollbacksTotal.WithLabelValues(reason).Inc()
}

// channel: sms / email, result: sent / failed / skipped
func RecordNotification(channel, result string) {
	notificationsTotal.WithLabelValues(channel, result).Inc()
}
