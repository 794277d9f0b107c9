// Package middleware holds the HTTP middleware of the search service:
// request ids, Prometheus instrumentation, timeouts, rate limiting and CORS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/metrics"
)

// Metrics counts requests by method, route and status and observes latency
// and response size per route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rw := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			route := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			m.HTTPResponseBytes.WithLabelValues(route).Observe(float64(rw.bytes))
		})
	}
}

// recordingWriter remembers the first status code and counts body bytes.
type recordingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *recordingWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Status is 200 when the handler wrote nothing.
func (rw *recordingWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// normalizePath keeps API, health and metrics routes and folds every other
// path into "other" so scanners cannot grow the label set.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/"),
		strings.HasPrefix(path, "/health/"),
		path == "/metrics":
		return path
	default:
		return "other"
	}
}
