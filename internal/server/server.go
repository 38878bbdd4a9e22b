// Package server implements the secrets server's HTTP server: a single
// POST / endpoint that dispatches by X-Amz-Target, plus health/metrics/docs.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	"github.com/bleepforge/secretsmanager/internal/auth"
	"github.com/bleepforge/secretsmanager/internal/config"
	"github.com/bleepforge/secretsmanager/internal/handlers"
	"github.com/bleepforge/secretsmanager/internal/store"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the secrets server's HTTP server. It routes every inbound
// request to the appropriate action handler based on X-Amz-Target.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	repo       *store.Repository
	verifier   *auth.SigV4Verifier
	h          *handlers.Handler
	actions    map[string]http.HandlerFunc
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithRepository sets the secret repository for the server.
func WithRepository(repo *store.Repository) ServerOption {
	return func(s *Server) { s.repo = repo }
}

// New creates a new Server with the given configuration, wiring the
// X-Amz-Target dispatch table and the /health, /metrics, /docs, /openapi
// surface on a Chi router with a Huma API.
func New(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("Secrets Manager-compatible API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{cfg: cfg, router: router, api: api}
	for _, opt := range opts {
		opt(s)
	}

	if s.repo == nil {
		return nil, errNoRepository
	}

	s.verifier = auth.NewSigV4Verifier(auth.Principal{
		AccessKeyID:     cfg.Auth.AccessKeyID,
		SecretAccessKey: cfg.Auth.SecretAccessKey,
	})
	if cfg.Auth.ClockSkewSeconds > 0 {
		s.verifier.ClockSkew = secondsToDuration(cfg.Auth.ClockSkewSeconds)
	}

	s.h = handlers.New(s.repo)
	s.actions = map[string]http.HandlerFunc{
		"BatchGetSecretValue":     s.h.BatchGetSecretValue,
		"CreateSecret":            s.h.CreateSecret,
		"DeleteSecret":            s.h.DeleteSecret,
		"DescribeSecret":          s.h.DescribeSecret,
		"GetRandomPassword":       s.h.GetRandomPassword,
		"GetSecretValue":          s.h.GetSecretValue,
		"ListSecrets":             s.h.ListSecrets,
		"ListSecretVersionIds":    s.h.ListSecretVersionIds,
		"PutSecretValue":          s.h.PutSecretValue,
		"RestoreSecret":           s.h.RestoreSecret,
		"TagResource":             s.h.TagResource,
		"UntagResource":           s.h.UntagResource,
		"UpdateSecret":            s.h.UpdateSecret,
		"UpdateSecretVersionStage": s.h.UpdateSecretVersionStage,
	}

	s.registerRoutes()
	return s, nil
}

// ListenAndServe starts the HTTP server on the given address. Middleware
// chain: metricsMiddleware -> commonHeaders -> auth.Middleware -> router.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	handler = auth.Middleware(s.verifier)(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	if s.cfg.Server.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes configures all routes on the Chi router.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the secrets server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		if err := s.repo.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("store unavailable", err)
		}
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	// The wire protocol is a single POST / endpoint; everything else (the
	// action to run) is carried in the X-Amz-Target header, not the path.
	s.router.Post("/", s.dispatch)
}

// dispatch extracts the action name from the X-Amz-Target header (of the
// form "secretsmanager.<Action>" or "<Service>.<Action>" — only the suffix
// matters) and invokes the matching action handler.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	action := target
	if idx := strings.LastIndexByte(target, '.'); idx >= 0 {
		action = target[idx+1:]
	}

	handler, ok := s.actions[action]
	if !ok {
		writeError(w, apierr.ErrUnknownOperation)
		return
	}
	handler(w, r)
}

func writeError(w http.ResponseWriter, apiErr *apierr.APIError) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(apiErr.HTTPStatus)
	_, _ = w.Write([]byte(`{"__type":"` + apiErr.Type + `","message":"` + apiErr.Message + `"}`))
}
