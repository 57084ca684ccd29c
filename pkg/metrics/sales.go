package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SaleMetrics tracks register activity.
type SaleMetrics struct {
	completed *prometheus.CounterVec
	voided    prometheus.Counter
	returned  prometheus.Counter
	revenue   prometheus.Counter
}

// NewSaleMetrics registers the sale metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Completed sales by payment method.",
	}, []string{"payment_method"})
	voided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_voided_total",
		Help: "Sales voided by an administrator.",
	})
	returned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_returns_total",
		Help: "Return operations processed.",
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_revenue_total",
		Help: "Gross revenue from completed sales.",
	})
	reg.MustRegister(completed, voided, returned, revenue)
	return &SaleMetrics{
		completed: completed,
		voided:    voided,
		returned:  returned,
		revenue:   revenue,
	}
}

// IncCompleted records a completed sale and its revenue.
func (s *SaleMetrics) IncCompleted(paymentMethod string, total decimal.Decimal) {
	if s == nil || s.completed == nil {
		return
	}
	s.completed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	amount, _ := total.Float64()
	if amount > 0 {
		s.revenue.Add(amount)
	}
}

// IncVoided records a voided sale.
func (s *SaleMetrics) IncVoided() {
	if s == nil || s.voided == nil {
		return
	}
	s.voided.Inc()
}

// IncReturned records a processed return.
func (s *SaleMetrics) IncReturned() {
	if s == nil || s.returned == nil {
		return
	}
	s.returned.Inc()
}
