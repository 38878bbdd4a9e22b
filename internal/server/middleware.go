package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bleepforge/secretsmanager/internal/metrics"
	"github.com/bleepforge/secretsmanager/internal/uid"
)

var errNoRepository = errors.New("server: WithRepository option is required")

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// commonHeaders is HTTP middleware that injects the response headers every
// Secrets Manager response carries: x-amzn-RequestId and Content-Type.
func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amzn-RequestId", uid.RequestID())
		next.ServeHTTP(w, r)
	})
}

// responseRecorder wraps http.ResponseWriter to capture the HTTP status
// code written, for use by metricsMiddleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.statusCode = code
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.statusCode = http.StatusOK
		rr.wroteHeader = true
	}
	return rr.ResponseWriter.Write(b)
}

// actionFromTarget extracts the action name from an X-Amz-Target header,
// the same suffix-only convention dispatch uses, so metrics and logs agree
// with the handler that actually ran.
func actionFromTarget(target string) string {
	if target == "" {
		return "unknown"
	}
	if idx := strings.LastIndexByte(target, '.'); idx >= 0 {
		return target[idx+1:]
	}
	return target
}

// metricsMiddleware records HTTPRequestsTotal and HTTPRequestDuration keyed
// by action rather than by method+path, since every action shares the same
// POST / route. /metrics and /health are excluded from self-instrumentation.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		action := actionFromTarget(r.Header.Get("X-Amz-Target"))
		duration := time.Since(start).Seconds()

		metrics.HTTPRequestsTotal.WithLabelValues(action, strconv.Itoa(rec.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(action).Observe(duration)
	})
}
