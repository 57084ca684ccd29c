package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dromeroc/tiendapos-backend/pkg/metrics"
)

// Metrics records per-route request counts and latencies. The route label
// comes from the chi pattern so path parameters do not explode cardinality.
func Metrics(httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if httpMetrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			httpMetrics.ObserveRequest(r.Method, routePattern(r), strconv.Itoa(defaultStatus(rec.status)), time.Since(start))
		})
	}
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusCapture) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}
