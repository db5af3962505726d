package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenticmail/connectd/internal/instrumentation"
	"github.com/agenticmail/connectd/internal/logging"
	"github.com/agenticmail/connectd/internal/pkce"
	"github.com/agenticmail/connectd/internal/providers"
)

// ClientCredentials is a provider's OAuth client registration for this
// deployment.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialSource resolves the client credentials for a provider.
// Implementations live outside this package (environment variables in
// production, fixtures in tests).
type CredentialSource interface {
	Credentials(providerID string) (ClientCredentials, error)
}

// MetricsRecorder receives flow telemetry. All methods must be cheap and
// non-blocking; a nil recorder on the Service disables recording entirely.
type MetricsRecorder interface {
	RecordFlowStarted(ctx context.Context, provider, result string)
	RecordFlowCompleted(ctx context.Context, provider, result string)
	RecordExchangeDuration(ctx context.Context, provider string, d time.Duration, result string)
	RecordPendingAuthorizations(ctx context.Context, delta int64)
}

// Connection is the outcome of a completed authorization flow: the tokens
// plus the identity of the skill and organization they belong to. Callers
// persist it; this subsystem never stores completed tokens.
type Connection struct {
	SkillID    string
	OrgID      string
	ProviderID string
	Token      *TokenResponse
}

// ServiceConfig carries the dependencies of a Service. Registry, Pending,
// Exchanger, and Credentials are required; Logger defaults to
// slog.Default() and Metrics may be nil.
type ServiceConfig struct {
	Registry    *providers.Registry
	Pending     *PendingStore
	Exchanger   *TokenExchanger
	Credentials CredentialSource
	Logger      *slog.Logger
	Metrics     MetricsRecorder
}

// Service orchestrates the two halves of the authorization code flow:
// StartAuthorization before the browser redirect, CompleteAuthorization
// when the provider calls back.
type Service struct {
	registry    *providers.Registry
	pending     *PendingStore
	exchanger   *TokenExchanger
	credentials CredentialSource
	builder     *URLBuilder
	logger      *slog.Logger
	metrics     MetricsRecorder
}

// NewService creates a flow service from its dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("flow service requires a provider registry")
	}
	if cfg.Pending == nil {
		return nil, fmt.Errorf("flow service requires a pending authorization store")
	}
	if cfg.Exchanger == nil {
		return nil, fmt.Errorf("flow service requires a token exchanger")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("flow service requires a credential source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		registry:    cfg.Registry,
		pending:     cfg.Pending,
		exchanger:   cfg.Exchanger,
		credentials: cfg.Credentials,
		builder:     NewURLBuilder(logger),
		logger:      logger,
		metrics:     cfg.Metrics,
	}

	// Pending entries also die inside the store, removed by the TTL sweep
	// or deleted on an expired redemption. The gauge has to see those
	// removals, not just successful consumes.
	if svc.metrics != nil {
		cfg.Pending.setRemovalListener(func(removed int) {
			svc.metrics.RecordPendingAuthorizations(context.Background(), -int64(removed))
		})
	}

	return svc, nil
}

// StartAuthorization begins a flow for the given skill, organization, and
// provider. It registers the flow context under a fresh state token and
// returns the provider authorization URL the user's browser should be sent
// to. For PKCE-capable providers a verifier is generated here and held in
// the pending store; it never leaves the process.
func (s *Service) StartAuthorization(ctx context.Context, skillID, orgID, providerID, redirectURI string) (string, error) {
	logger := logging.WithOperation(s.logger, "start_authorization")

	if skillID == "" || orgID == "" || providerID == "" || redirectURI == "" {
		return "", fmt.Errorf("start authorization: skill id, org id, provider id, and redirect URI are all required")
	}

	def, err := s.registry.Get(providerID)
	if err != nil {
		logger.Warn("authorization requested for unknown provider",
			logging.Provider(providerID), logging.Err(err))
		s.recordFlowStarted(ctx, providerID, logging.StatusError)
		return "", err
	}

	creds, err := s.credentials.Credentials(providerID)
	if err != nil {
		s.recordFlowStarted(ctx, providerID, logging.StatusError)
		return "", fmt.Errorf("failed to resolve credentials for %q: %w", providerID, err)
	}

	var verifier, challenge string
	if def.SupportsPKCE {
		verifier, err = pkce.GenerateVerifier()
		if err != nil {
			s.recordFlowStarted(ctx, providerID, logging.StatusError)
			return "", fmt.Errorf("failed to generate PKCE verifier: %w", err)
		}
		challenge = pkce.DeriveChallenge(verifier)
	}

	state, err := s.pending.Create(PendingAuthorization{
		SkillID:      skillID,
		OrgID:        orgID,
		ProviderID:   providerID,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
	})
	if err != nil {
		s.recordFlowStarted(ctx, providerID, logging.StatusError)
		return "", err
	}
	s.recordPendingDelta(ctx, 1)

	authURL, err := s.builder.Build(def, AuthorizationParams{
		ClientID:      creds.ClientID,
		RedirectURI:   redirectURI,
		State:         state,
		CodeChallenge: challenge,
	})
	if err != nil {
		// Don't leave an orphaned entry behind for a flow that never got
		// its redirect URL. Consuming it notifies the removal listener, so
		// the gauge nets out to zero.
		_, _ = s.pending.Consume(state)
		s.recordFlowStarted(ctx, providerID, logging.StatusError)
		return "", err
	}

	logger.Info("authorization flow started",
		logging.Skill(skillID),
		logging.Org(orgID),
		logging.Provider(providerID),
		logging.StateHash(state),
		slog.Bool("pkce", challenge != ""))
	s.recordFlowStarted(ctx, providerID, logging.StatusSuccess)

	return authURL, nil
}

// CompleteAuthorization finishes a flow when the provider redirects back
// with a code. The state token is redeemed (at most once, within the TTL)
// to recover the flow context, then the code is exchanged for tokens.
func (s *Service) CompleteAuthorization(ctx context.Context, state, code string) (*Connection, error) {
	logger := logging.WithOperation(s.logger, "complete_authorization")

	if state == "" || code == "" {
		return nil, fmt.Errorf("complete authorization: state and code are both required")
	}

	p, err := s.pending.Consume(state)
	if err != nil {
		logger.Warn("callback with unredeemable state token",
			logging.StateHash(state), logging.Err(err))
		return nil, err
	}

	logger = logger.With(
		logging.Skill(p.SkillID),
		logging.Org(p.OrgID),
		logging.Provider(p.ProviderID))

	def, err := s.registry.Get(p.ProviderID)
	if err != nil {
		// The provider was in the catalog when the flow started; losing it
		// mid-flight means the catalog was swapped underneath us.
		logger.Error("provider disappeared from catalog mid-flow", logging.Err(err))
		s.recordFlowCompleted(ctx, p.ProviderID, logging.StatusError)
		return nil, err
	}

	creds, err := s.credentials.Credentials(p.ProviderID)
	if err != nil {
		s.recordFlowCompleted(ctx, p.ProviderID, logging.StatusError)
		return nil, fmt.Errorf("failed to resolve credentials for %q: %w", p.ProviderID, err)
	}

	exchangeCtx, exchangeSpan := instrumentation.StartExchangeSpan(ctx, p.ProviderID)
	start := time.Now()
	tok, err := s.exchanger.Exchange(exchangeCtx, def, ExchangeParams{
		Code:         code,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  p.RedirectURI,
		CodeVerifier: p.CodeVerifier,
	})
	elapsed := time.Since(start)
	if err != nil {
		instrumentation.SetSpanError(exchangeSpan, err)
	} else {
		instrumentation.SetSpanSuccess(exchangeSpan)
	}
	exchangeSpan.End()
	if err != nil {
		var exchangeErr *TokenExchangeError
		var netErr *NetworkError
		switch {
		case errors.As(err, &exchangeErr):
			logger.Error("token exchange rejected by provider",
				slog.Int("http_status", exchangeErr.Status),
				logging.Err(err))
		case errors.As(err, &netErr):
			logger.Error("token endpoint unreachable", logging.Err(err))
		default:
			logger.Error("token exchange failed", logging.Err(err))
		}
		s.recordExchange(ctx, p.ProviderID, elapsed, logging.StatusError)
		s.recordFlowCompleted(ctx, p.ProviderID, logging.StatusError)
		return nil, err
	}

	logger.Info("authorization flow completed",
		logging.StateHash(state),
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)),
		slog.Bool("refresh_token", tok.RefreshToken != ""),
		slog.Duration(logging.KeyDuration, elapsed))
	s.recordExchange(ctx, p.ProviderID, elapsed, logging.StatusSuccess)
	s.recordFlowCompleted(ctx, p.ProviderID, logging.StatusSuccess)

	return &Connection{
		SkillID:    p.SkillID,
		OrgID:      p.OrgID,
		ProviderID: p.ProviderID,
		Token:      tok,
	}, nil
}

func (s *Service) recordFlowStarted(ctx context.Context, provider, result string) {
	if s.metrics != nil {
		s.metrics.RecordFlowStarted(ctx, provider, result)
	}
}

func (s *Service) recordFlowCompleted(ctx context.Context, provider, result string) {
	if s.metrics != nil {
		s.metrics.RecordFlowCompleted(ctx, provider, result)
	}
}

func (s *Service) recordExchange(ctx context.Context, provider string, d time.Duration, result string) {
	if s.metrics != nil {
		s.metrics.RecordExchangeDuration(ctx, provider, d, result)
	}
}

func (s *Service) recordPendingDelta(ctx context.Context, delta int64) {
	if s.metrics != nil {
		s.metrics.RecordPendingAuthorizations(ctx, delta)
	}
}
