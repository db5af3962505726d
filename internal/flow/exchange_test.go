package flow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenticmail/connectd/internal/providers"
)

func exchangeParams() ExchangeParams {
	return ExchangeParams{
		Code:         "auth-code-1",
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: "verifier-789",
	}
}

func providerAt(tokenURL string, supportsPKCE bool) providers.Definition {
	return providers.Definition{
		ID:           "acme",
		Name:         "Acme",
		AuthURL:      "https://auth.acme.example/authorize",
		TokenURL:     tokenURL,
		SupportsPKCE: supportsPKCE,
	}
}

func newExchanger(t *testing.T) *TokenExchanger {
	t.Helper()
	return NewTokenExchangerWithClient(http.DefaultClient, testLogger())
}

func TestTokenExchanger_Success(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"code":          r.PostForm.Get("code"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"redirect_uri":  r.PostForm.Get("redirect_uri"),
			"code_verifier": r.PostForm.Get("code_verifier"),
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "at-abc",
			"refresh_token": "rt-def",
			"expires_in": 3600,
			"token_type": "Bearer",
			"scope": "read write"
		}`))
	}))
	defer srv.Close()

	tok, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	require.NoError(t, err)

	assert.Equal(t, "at-abc", tok.AccessToken)
	assert.Equal(t, "rt-def", tok.RefreshToken)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "read write", tok.Scope)

	assert.Equal(t, "authorization_code", gotForm["grant_type"])
	assert.Equal(t, "auth-code-1", gotForm["code"])
	assert.Equal(t, "client-123", gotForm["client_id"])
	assert.Equal(t, "secret-456", gotForm["client_secret"])
	assert.Equal(t, "https://app.example.com/callback", gotForm["redirect_uri"])
	assert.Equal(t, "verifier-789", gotForm["code_verifier"])
}

func TestTokenExchanger_VerifierOmittedWithoutPKCESupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.False(t, r.PostForm.Has("code_verifier"))
		w.Write([]byte(`{"access_token": "at-abc"}`))
	}))
	defer srv.Close()

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, false), exchangeParams())
	require.NoError(t, err)
}

func TestTokenExchanger_ProviderRejection(t *testing.T) {
	body := `{"error": "invalid_grant", "error_description": "code expired"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	require.Error(t, err)

	var exchangeErr *TokenExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusUnauthorized, exchangeErr.Status)
	assert.Equal(t, body, exchangeErr.Body)
	assert.Contains(t, exchangeErr.Message, "invalid_grant")
	assert.Contains(t, exchangeErr.Message, "code expired")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenExchanger_ErrorMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat error only", `{"error": "access_denied"}`, "access_denied"},
		{"description only", `{"error_description": "user said no"}`, "user said no"},
		{"nested error object", `{"error": {"message": "quota exceeded"}}`, "quota exceeded"},
		{"bare message", `{"message": "internal error"}`, "internal error"},
		{"plain text", `upstream exploded`, "upstream exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
			var exchangeErr *TokenExchangeError
			require.ErrorAs(t, err, &exchangeErr)
			assert.Equal(t, tt.want, exchangeErr.Message)
			assert.Equal(t, tt.body, exchangeErr.Body)
		})
	}
}

func TestTokenExchanger_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusOK, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Message, "malformed token response")
}

func TestTokenExchanger_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer srv.Close()

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Contains(t, exchangeErr.Message, "missing access_token")
}

func TestTokenExchanger_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, srv.URL, netErr.Endpoint)
	assert.NotNil(t, errors.Unwrap(netErr))
}

func TestTokenExchanger_NoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newExchanger(t).Exchange(context.Background(), providerAt(srv.URL, true), exchangeParams())
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTokenExchanger_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExchanger(t).Exchange(ctx, providerAt(srv.URL, true), exchangeParams())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
