package flow

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/agenticmail/connectd/internal/logging"
	"github.com/agenticmail/connectd/internal/pkce"
	"github.com/agenticmail/connectd/internal/providers"
)

// AuthorizationParams carries the per-flow inputs for building an
// authorization URL. Scopes may be nil to use the provider's defaults.
type AuthorizationParams struct {
	ClientID      string
	RedirectURI   string
	State         string
	Scopes        []string
	CodeChallenge string
}

// URLBuilder assembles provider authorization URLs. It is a pure function
// of the provider definition and flow parameters, with a logger only for
// the PKCE-downgrade warning.
type URLBuilder struct {
	logger *slog.Logger
}

// NewURLBuilder creates a URL builder. A nil logger falls back to
// slog.Default().
func NewURLBuilder(logger *slog.Logger) *URLBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &URLBuilder{logger: logger}
}

// Build returns the provider authorization URL for the given flow. The
// query always carries response_type=code, client_id, redirect_uri, and
// state. Scope resolution: explicit scopes win, then the provider's
// defaults, and the parameter is omitted entirely when both are empty.
//
// PKCE parameters are attached only when a challenge is supplied AND the
// provider supports PKCE. A challenge offered to a non-PKCE provider is a
// downgrade: it is logged as a warning and the parameters are omitted,
// rather than sent for the provider to silently ignore.
func (b *URLBuilder) Build(provider providers.Definition, p AuthorizationParams) (string, error) {
	if p.ClientID == "" {
		return "", fmt.Errorf("authorization URL for %q: missing client id", provider.ID)
	}
	if p.RedirectURI == "" {
		return "", fmt.Errorf("authorization URL for %q: missing redirect URI", provider.ID)
	}
	if p.State == "" {
		return "", fmt.Errorf("authorization URL for %q: missing state token", provider.ID)
	}

	u, err := url.Parse(provider.AuthURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint for %q: %w", provider.ID, err)
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("state", p.State)

	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = provider.DefaultScopes
	}
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}

	if p.CodeChallenge != "" {
		if provider.SupportsPKCE {
			q.Set("code_challenge", p.CodeChallenge)
			q.Set("code_challenge_method", pkce.ChallengeMethodS256)
		} else {
			b.logger.Warn("provider does not support PKCE, omitting code challenge",
				logging.Provider(provider.ID))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
