package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agenticmail/connectd/internal/logging"
	"github.com/agenticmail/connectd/internal/providers"
)

const (
	// DefaultExchangeTimeout bounds a token endpoint round trip when the
	// caller supplies no HTTP client of its own.
	DefaultExchangeTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a token endpoint response is read.
	// Well-behaved providers answer in a few hundred bytes; the cap only
	// protects against a misbehaving or hostile endpoint.
	maxResponseBytes = 1 << 20

	// maxErrorMessageLen caps the extracted error summary. The full body is
	// still available on TokenExchangeError.Body.
	maxErrorMessageLen = 256
)

// TokenResponse is a successful token endpoint response. AccessToken is
// the only field every provider returns; the rest are optional per
// RFC 6749 and absent fields stay zero-valued.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ExchangeParams carries the inputs of one code-for-token exchange.
type ExchangeParams struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// CodeVerifier is sent only when non-empty and the provider supports
	// PKCE.
	CodeVerifier string
}

// TokenExchanger performs the code-for-token POST against provider token
// endpoints. Each exchange is exactly one HTTP request; see
// TokenExchangeError for why there are no retries.
//
// The exchange is hand-rolled rather than delegated to oauth2.Config
// because callers need the raw response body and status of failed
// exchanges, which oauth2's RetrieveError does not preserve across all
// provider response shapes.
type TokenExchanger struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTokenExchanger creates an exchanger with a default HTTP client.
func NewTokenExchanger() *TokenExchanger {
	return NewTokenExchangerWithClient(&http.Client{Timeout: DefaultExchangeTimeout}, slog.Default())
}

// NewTokenExchangerWithClient creates an exchanger with a caller-supplied
// HTTP client (tests inject one pointed at httptest servers) and logger.
func NewTokenExchangerWithClient(client *http.Client, logger *slog.Logger) *TokenExchanger {
	if client == nil {
		client = &http.Client{Timeout: DefaultExchangeTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenExchanger{httpClient: client, logger: logger}
}

// Exchange trades an authorization code for tokens at the provider's token
// endpoint. Transport failures return a *NetworkError; any response that
// does not yield an access token returns a *TokenExchangeError carrying
// the raw body.
func (x *TokenExchanger) Exchange(ctx context.Context, provider providers.Definition, p ExchangeParams) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", p.Code)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	form.Set("redirect_uri", p.RedirectURI)
	if p.CodeVerifier != "" && provider.SupportsPKCE {
		form.Set("code_verifier", p.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request for %q: %w", provider.ID, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHub answers with form-encoded text unless asked for JSON.
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: provider.TokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Endpoint: provider.TokenURL, Err: err}
	}

	x.logger.Debug("token exchange completed",
		logging.Provider(provider.ID),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TokenExchangeError{
			Status:  resp.StatusCode,
			Body:    string(body),
			Message: extractErrorMessage(body),
		}
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &TokenExchangeError{
			Status:  resp.StatusCode,
			Body:    string(body),
			Message: "malformed token response: " + err.Error(),
		}
	}
	if tok.AccessToken == "" {
		return nil, &TokenExchangeError{
			Status:  resp.StatusCode,
			Body:    string(body),
			Message: "token response missing access_token",
		}
	}

	return &tok, nil
}

// extractErrorMessage pulls a human-readable summary out of a token
// endpoint error body. Providers disagree on error shapes, so this tries
// the common ones in turn: RFC 6749 flat "error"/"error_description",
// nested {"error": {"message": ...}}, a bare "message", and finally the
// trimmed raw text.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Message          string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var code string
		if len(payload.Error) > 0 {
			var s string
			if json.Unmarshal(payload.Error, &s) == nil {
				code = s
			} else {
				var nested struct {
					Message string `json:"message"`
				}
				if json.Unmarshal(payload.Error, &nested) == nil {
					code = nested.Message
				}
			}
		}
		switch {
		case code != "" && payload.ErrorDescription != "":
			return truncate(code + ": " + payload.ErrorDescription)
		case code != "":
			return truncate(code)
		case payload.ErrorDescription != "":
			return truncate(payload.ErrorDescription)
		case payload.Message != "":
			return truncate(payload.Message)
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) > maxErrorMessageLen {
		return s[:maxErrorMessageLen]
	}
	return s
}
