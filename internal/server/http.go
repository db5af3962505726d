package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agenticmail/connectd/internal/flow"
	"github.com/agenticmail/connectd/internal/instrumentation"
	"github.com/agenticmail/connectd/internal/logging"
	"github.com/agenticmail/connectd/internal/providers"
)

const (
	// DefaultAPIAddr is the default address for the connection API server.
	DefaultAPIAddr = ":8080"

	// maxRequestBodyBytes caps JSON request bodies on the connection API.
	maxRequestBodyBytes = 1 << 20
)

// ConnectionSink receives completed connections for persistence. The flow
// subsystem itself never stores tokens; whatever is plugged in here owns
// them from the moment CompleteAuthorization returns.
type ConnectionSink interface {
	StoreConnection(ctx context.Context, conn *flow.Connection) error
}

// APIServerConfig holds configuration for the connection API server.
type APIServerConfig struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// ServerContext carries the flow service and provider catalog.
	ServerContext *ServerContext

	// Sink receives completed connections. When nil, completions are
	// logged and discarded, which is only useful in development.
	Sink ConnectionSink

	// Metrics records HTTP request telemetry. Optional.
	Metrics *instrumentation.Metrics

	// Audit writes the connection-attempt audit trail. Optional.
	Audit *instrumentation.AuditLogger

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// APIServer exposes the connection flow over HTTP:
//
//	POST /v1/connections          start an authorization flow
//	GET  /v1/connections/callback provider redirect target
//	GET  /v1/providers            list the provider catalog
//
// plus the usual health endpoints.
type APIServer struct {
	sc         *ServerContext
	health     *HealthChecker
	sink       ConnectionSink
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	logger     *slog.Logger
	addr       string
	httpServer *http.Server
}

// NewAPIServer creates a connection API server.
func NewAPIServer(config APIServerConfig) (*APIServer, error) {
	if config.ServerContext == nil {
		return nil, fmt.Errorf("server context is required for API server")
	}
	if config.Addr == "" {
		config.Addr = DefaultAPIAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APIServer{
		sc:      config.ServerContext,
		health:  NewHealthChecker(config.ServerContext),
		sink:    config.Sink,
		metrics: config.Metrics,
		audit:   config.Audit,
		logger:  logger,
		addr:    config.Addr,
	}, nil
}

// Health returns the server's health checker, so the serve loop can flip
// readiness during startup and shutdown.
func (s *APIServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the full HTTP handler tree. Exposed for tests.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/connections", s.instrumented("/v1/connections", http.HandlerFunc(s.handleStartConnection)))
	mux.Handle("GET /v1/connections/callback", s.instrumented("/v1/connections/callback", http.HandlerFunc(s.handleCallback)))
	mux.Handle("GET /v1/providers", s.instrumented("/v1/providers", http.HandlerFunc(s.handleListProviders)))

	s.health.RegisterHealthEndpoints(mux)

	return mux
}

// Start starts the API server in a blocking manner.
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting connection API server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		s.logger.Info("shutting down connection API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured address for the API server.
func (s *APIServer) Addr() string {
	return s.addr
}

type startConnectionRequest struct {
	SkillID     string `json:"skill_id"`
	OrgID       string `json:"org_id"`
	ProviderID  string `json:"provider_id"`
	RedirectURI string `json:"redirect_uri"`
}

type startConnectionResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	ProviderID       string `json:"provider_id"`
}

type callbackResponse struct {
	Status     string `json:"status"`
	SkillID    string `json:"skill_id"`
	OrgID      string `json:"org_id"`
	ProviderID string `json:"provider_id"`
}

type providerInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	DefaultScopes []string `json:"default_scopes,omitempty"`
	SupportsPKCE  bool     `json:"supports_pkce"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleStartConnection starts an authorization flow and returns the URL
// the user's browser should be redirected to.
func (s *APIServer) handleStartConnection(w http.ResponseWriter, r *http.Request) {
	var req startConnectionRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.SkillID == "" || req.OrgID == "" || req.ProviderID == "" || req.RedirectURI == "" {
		s.writeError(w, http.StatusBadRequest, "skill_id, org_id, provider_id, and redirect_uri are required")
		return
	}

	ctx, span := instrumentation.StartFlowSpan(r.Context(),
		instrumentation.OperationStart, req.ProviderID,
		instrumentation.NewSpanAttributeBuilder().
			WithSkill(req.SkillID).
			WithOrg(req.OrgID).
			Build()...)
	defer span.End()

	attempt := instrumentation.NewConnectionAttempt(
		instrumentation.OperationStart, req.SkillID, req.OrgID, req.ProviderID).
		WithRedirectURI(req.RedirectURI).
		WithSpanContext(ctx)

	authURL, err := s.sc.Flows().StartAuthorization(ctx, req.SkillID, req.OrgID, req.ProviderID, req.RedirectURI)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.logAudit(attempt.CompleteWithError(err))
		s.writeFlowError(w, err)
		return
	}
	instrumentation.SetSpanSuccess(span)
	s.logAudit(attempt.CompleteSuccess())

	s.writeJSON(w, http.StatusCreated, startConnectionResponse{
		AuthorizationURL: authURL,
		ProviderID:       req.ProviderID,
	})
}

// handleCallback is the redirect target providers send the user's browser
// back to. It redeems the state token, exchanges the code, and hands the
// resulting connection to the sink. The response never carries tokens;
// they go to the sink and nowhere else.
func (s *APIServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Providers report user denial and their own errors as query params
	// instead of a code.
	if provErr := q.Get("error"); provErr != "" {
		msg := provErr
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		s.logger.Warn("authorization denied by provider",
			logging.Operation("callback"), slog.String("provider_error", msg))
		s.writeError(w, http.StatusBadRequest, "authorization failed: "+msg)
		return
	}

	state := q.Get("state")
	code := q.Get("code")
	if state == "" || code == "" {
		s.writeError(w, http.StatusBadRequest, "state and code query parameters are required")
		return
	}

	// The provider is unknown until the state is redeemed; the attribute
	// is filled in once the flow context is recovered.
	ctx, span := instrumentation.StartFlowSpan(r.Context(),
		instrumentation.OperationComplete, "")
	defer span.End()

	attempt := instrumentation.NewConnectionAttempt(
		instrumentation.OperationComplete, "", "", "").
		WithSpanContext(ctx)

	conn, err := s.sc.Flows().CompleteAuthorization(ctx, state, code)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.logAudit(attempt.CompleteWithError(err))
		s.writeFlowError(w, err)
		return
	}
	span.SetAttributes(attribute.String(instrumentation.SpanAttrProvider, conn.ProviderID))
	instrumentation.SetSpanSuccess(span)
	attempt.SkillID = conn.SkillID
	attempt.OrgID = conn.OrgID
	attempt.ProviderID = conn.ProviderID
	s.logAudit(attempt.CompleteSuccess())

	if s.sink != nil {
		if err := s.sink.StoreConnection(r.Context(), conn); err != nil {
			s.logger.Error("failed to store completed connection",
				logging.Skill(conn.SkillID),
				logging.Org(conn.OrgID),
				logging.Provider(conn.ProviderID),
				logging.Err(err))
			s.writeError(w, http.StatusInternalServerError, "connection completed but could not be stored")
			return
		}
	} else {
		s.logger.Warn("no connection sink configured, discarding completed connection",
			logging.Skill(conn.SkillID),
			logging.Provider(conn.ProviderID))
	}

	s.writeJSON(w, http.StatusOK, callbackResponse{
		Status:     "connected",
		SkillID:    conn.SkillID,
		OrgID:      conn.OrgID,
		ProviderID: conn.ProviderID,
	})
}

// handleListProviders returns the provider catalog for the dashboard's
// connect page.
func (s *APIServer) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	defs := s.sc.Registry().List()
	out := make([]providerInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, providerInfo{
			ID:            d.ID,
			Name:          d.Name,
			DefaultScopes: d.DefaultScopes,
			SupportsPKCE:  d.SupportsPKCE,
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

// writeFlowError maps flow errors onto HTTP status codes. Token bodies and
// provider error details stay in the logs; the HTTP response carries only
// the category.
func (s *APIServer) writeFlowError(w http.ResponseWriter, err error) {
	var exchangeErr *flow.TokenExchangeError
	var netErr *flow.NetworkError

	switch {
	case errors.Is(err, providers.ErrUnknownProvider):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, flow.ErrStateNotFoundOrExpired):
		s.writeError(w, http.StatusGone, err.Error())
	case errors.As(err, &exchangeErr):
		s.writeError(w, http.StatusBadGateway, "provider rejected the token exchange")
	case errors.As(err, &netErr):
		s.writeError(w, http.StatusGatewayTimeout, "provider token endpoint unreachable")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", logging.Err(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *APIServer) logAudit(attempt *instrumentation.ConnectionAttempt) {
	if s.audit != nil {
		s.audit.LogConnectionAttempt(attempt)
	}
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrumented wraps a handler with HTTP request metrics. The path label
// is the route pattern, never the raw URL, to keep cardinality bounded.
func (s *APIServer) instrumented(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
		}
	})
}
