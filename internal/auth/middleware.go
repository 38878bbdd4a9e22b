package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	"github.com/bleepforge/secretsmanager/internal/metrics"
)

// skipPaths is the set of paths that do not require authentication.
var skipPaths = map[string]bool{
	"/health":       true,
	"/healthz":      true,
	"/readyz":       true,
	"/metrics":      true,
	"/docs":         true,
	"/docs/":        true,
	"/openapi":      true,
	"/openapi.json": true,
}

// Middleware returns HTTP middleware that enforces AWS SigV4 authentication
// on every request except those to excluded paths (/health, /metrics, /docs,
// /openapi). The wire protocol is POST-only with an Authorization header, so
// unlike a general-purpose S3 verifier there is no presigned-query-string
// path to detect or route to.
func Middleware(verifier *SigV4Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if skipPaths[path] || strings.HasPrefix(path, "/docs") {
				next.ServeHTTP(w, r)
				return
			}

			if err := verifier.VerifyRequest(r); err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError writes the JSON "__type"/"message" error envelope for an
// authentication failure and records it in the auth-failure metric.
func writeAuthError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.APIError)
	if !ok {
		apiErr = apierr.ErrInternalFailure
	}
	metrics.AuthFailuresTotal.WithLabelValues(apiErr.Type).Inc()

	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"__type":  apiErr.Type,
		"message": apiErr.Message,
	})
}
