package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/agenticmail/connectd/internal/flow"
)

// DefaultEnvPrefix is the prefix of the credential environment variables:
// CONNECT_<PROVIDER>_CLIENT_ID and CONNECT_<PROVIDER>_CLIENT_SECRET.
const DefaultEnvPrefix = "CONNECT"

// EnvSource resolves client credentials from environment variables. The
// provider id is uppercased and dashes become underscores, so provider
// "google" reads CONNECT_GOOGLE_CLIENT_ID / CONNECT_GOOGLE_CLIENT_SECRET.
//
// Credentials are read on every call rather than cached, so a process
// restart is never needed to pick up a rotated secret injected by the
// deployment platform.
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a source with the default prefix.
func NewEnvSource() *EnvSource {
	return NewEnvSourceWithPrefix(DefaultEnvPrefix)
}

// NewEnvSourceWithPrefix creates a source with a custom prefix, for
// deployments running multiple instances against one environment.
func NewEnvSourceWithPrefix(prefix string) *EnvSource {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvSource{prefix: prefix}
}

// Credentials implements flow.CredentialSource.
func (s *EnvSource) Credentials(providerID string) (flow.ClientCredentials, error) {
	idVar := s.varName(providerID, "CLIENT_ID")
	secretVar := s.varName(providerID, "CLIENT_SECRET")

	clientID := os.Getenv(idVar)
	if clientID == "" {
		return flow.ClientCredentials{}, fmt.Errorf("provider %q has no client id configured (set %s)", providerID, idVar)
	}

	// Some providers (public PKCE clients) issue no secret; an empty
	// secret is valid as long as the client id is present.
	return flow.ClientCredentials{
		ClientID:     clientID,
		ClientSecret: os.Getenv(secretVar),
	}, nil
}

// varName builds the environment variable name for a provider and suffix.
func (s *EnvSource) varName(providerID, suffix string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(providerID, "-", "_"))
	return s.prefix + "_" + normalized + "_" + suffix
}

// Static is a fixed in-memory credential source, used by tests and by
// single-provider deployments configured through flags.
type Static map[string]flow.ClientCredentials

// Credentials implements flow.CredentialSource.
func (s Static) Credentials(providerID string) (flow.ClientCredentials, error) {
	creds, ok := s[providerID]
	if !ok {
		return flow.ClientCredentials{}, fmt.Errorf("provider %q has no client credentials configured", providerID)
	}
	return creds, nil
}
