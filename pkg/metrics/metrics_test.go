package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func TestHTTPMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.ObserveRequest("POST", "/api/v1/sales", "201", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/api/v1/sales"); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 1 {
		t.Fatalf("expected requests=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/v1/sales"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestSaleMetricsCountsByPaymentMethod(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSaleMetrics(reg)
	metrics.IncCompleted("CASH", decimal.NewFromFloat(1500.50))
	metrics.IncCompleted("CASH", decimal.NewFromFloat(200))
	metrics.IncVoided()
	metrics.IncReturned()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sales_completed_total", "payment_method", "CASH"); err != nil {
		t.Fatalf("fetch completed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected completed=2, got %f", got)
	}

	if got := fetchUnlabeledCounter(t, mfs, "sales_voided_total"); got != 1 {
		t.Fatalf("expected voided=1, got %f", got)
	}
	if got := fetchUnlabeledCounter(t, mfs, "sales_returns_total"); got != 1 {
		t.Fatalf("expected returns=1, got %f", got)
	}
	if got := fetchUnlabeledCounter(t, mfs, "sales_revenue_total"); got != 1700.50 {
		t.Fatalf("expected revenue=1700.50, got %f", got)
	}
}

func TestNilRegistererProducesNoopMetrics(t *testing.T) {
	httpMetrics := NewHTTPMetrics(nil)
	httpMetrics.ObserveRequest("GET", "/health/live", "200", time.Millisecond)

	saleMetrics := NewSaleMetrics(nil)
	saleMetrics.IncCompleted("CARD", decimal.NewFromInt(10))
	saleMetrics.IncVoided()
	saleMetrics.IncReturned()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchUnlabeledCounter(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	metrics := mf.GetMetric()
	if len(metrics) != 1 {
		t.Fatalf("expected a single series for %q, got %d", name, len(metrics))
	}
	return metrics[0].GetCounter().GetValue()
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
