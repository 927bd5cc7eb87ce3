package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOrderMetricsExportsOutcomesAndOversell(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)
	m.IncVerification("confirmed")
	m.IncVerification("confirmed")
	m.IncVerification("transient")
	m.AddOversell(3)
	m.AddOversell(0)
	m.ObserveGateway("verify", errors.New("boom"), 40*time.Millisecond)
	m.IncOrderCreated("wallet")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payment_verifications_total", "outcome", "confirmed"); err != nil || got != 2 {
		t.Fatalf("expected confirmed=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "orders_created_total", "method", "wallet"); err != nil || got != 1 {
		t.Fatalf("expected wallet orders=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "payment_gateway_request_seconds", "result", "error"); err != nil || got <= 0 {
		t.Fatalf("expected gateway latency recorded, got %f (%v)", got, err)
	}

	mf := findMetricFamily(mfs, "stock_oversell_total")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("oversell counter missing")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected oversell=3, got %f", got)
	}
}

func TestOrderMetricsNilSafe(t *testing.T) {
	var m *OrderMetrics
	m.IncVerification("confirmed")
	m.AddOversell(1)
	m.ObserveGateway("initialize", nil, time.Second)
	NewOrderMetrics(nil).IncOrderCreated("card")
}
