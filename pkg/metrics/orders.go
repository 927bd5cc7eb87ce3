package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks payment verification and post-payment side effects.
type OrderMetrics struct {
	verifications  *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	oversell       prometheus.Counter
	ordersCreated  *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer. A nil
// registerer yields a recorder whose methods are no-ops.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by outcome.",
	}, []string{"outcome"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_seconds",
		Help:    "Latency of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	oversell := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_oversell_total",
		Help: "Units committed beyond available stock after payment.",
	})
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders persisted by payment method.",
	}, []string{"method"})
	reg.MustRegister(verifications, gatewayLatency, oversell, ordersCreated)
	return &OrderMetrics{
		verifications:  verifications,
		gatewayLatency: gatewayLatency,
		oversell:       oversell,
		ordersCreated:  ordersCreated,
	}
}

// IncVerification counts one verification with its outcome.
func (m *OrderMetrics) IncVerification(outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGateway records how long a gateway call took.
func (m *OrderMetrics) ObserveGateway(operation string, err error, took time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), result).Observe(took.Seconds())
}

// AddOversell records units sold past zero stock.
func (m *OrderMetrics) AddOversell(units int) {
	if m == nil || m.oversell == nil || units <= 0 {
		return
	}
	m.oversell.Add(float64(units))
}

func (m *OrderMetrics) IncOrderCreated(method string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}
