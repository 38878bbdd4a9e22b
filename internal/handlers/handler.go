// Package handlers implements the 14 Secrets Manager action handlers and
// the GetRandomPassword generator on top of internal/store.Repository.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	"github.com/bleepforge/secretsmanager/internal/metrics"
	"github.com/bleepforge/secretsmanager/internal/store"
)

// Handler holds the dependencies every action handler needs: the secret
// repository and nothing else. Unlike the object-store handlers this
// replaces, there is no separate storage backend — all state lives in the
// one encrypted repository.
type Handler struct {
	repo *store.Repository
}

// New creates a Handler backed by the given repository.
func New(repo *store.Repository) *Handler {
	return &Handler{repo: repo}
}

// decodeBody decodes the request body into dst. A missing or empty body is
// treated as "{}" per the wire protocol. Malformed JSON yields
// SerializationException.
func decodeBody(r *http.Request, dst any) *apierr.APIError {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierr.ErrSerialization.WithMessage("%v", err)
	}
	return nil
}

// writeJSON writes a 200 response with the JSON-encoded body.
func writeJSON(w http.ResponseWriter, action string, body any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
	metrics.OperationsTotal.WithLabelValues(action, "success").Inc()
}

// writeError writes the typed JSON error envelope and records the outcome.
func writeError(w http.ResponseWriter, action string, apiErr *apierr.APIError) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"__type":  apiErr.Type,
		"message": apiErr.Message,
	})
	metrics.OperationsTotal.WithLabelValues(action, apiErr.Type).Inc()
}

// storeErr translates a store sentinel error into the matching typed API
// error. Errors the repository did not anticipate surface as InternalFailure
// rather than leaking storage internals onto the wire.
func storeErr(err error) *apierr.APIError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apierr.ErrResourceNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return apierr.ErrResourceExists
	case errors.Is(err, store.ErrAlreadyDeleted):
		return apierr.ErrInvalidRequest.WithMessage("the secret is marked for deletion")
	case errors.Is(err, store.ErrNotDeleted):
		return apierr.ErrInvalidRequest.WithMessage("the secret is not scheduled for deletion")
	case errors.Is(err, store.ErrTokenConflict):
		return apierr.ErrResourceExists.WithMessage("the client request token refers to a different secret value")
	case errors.Is(err, store.ErrInvalidStage):
		return apierr.ErrInvalidParameter.WithMessage("%v", err)
	case errors.Is(err, store.ErrInvalidNextToken):
		return apierr.ErrInvalidNextToken
	default:
		return apierr.ErrInternalFailure.WithMessage("%v", err)
	}
}
