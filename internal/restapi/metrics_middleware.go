package restapi

import (
	"net/http"
	"strconv"
	"strings"

	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/metrics"
)

const unmatchedRoute = "unmatched"

// routeLabel turns the mux pattern that served r into a metrics label, e.g.
// "GET /api/arrivals/{stopId}" becomes "/api/arrivals/{stopId}". Stop and route
// ids never reach the label.
func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	if pattern == "" || pattern == "/" {
		return unmatchedRoute
	}
	return pattern
}

// RequestMetricsMiddleware counts requests per route and status and times them
// with c. A nil m disables it.
func RequestMetricsMiddleware(m *metrics.Metrics, c clock.Clock) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if c == nil {
		c = clock.RealClock{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := c.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routeLabel(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(c.Now().Sub(start).Seconds())
		})
	}
}

// statusRecorder remembers the status written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
