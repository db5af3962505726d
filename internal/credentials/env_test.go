package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource_Credentials(t *testing.T) {
	t.Setenv("CONNECT_GOOGLE_CLIENT_ID", "id-123")
	t.Setenv("CONNECT_GOOGLE_CLIENT_SECRET", "secret-456")

	creds, err := NewEnvSource().Credentials("google")
	require.NoError(t, err)
	assert.Equal(t, "id-123", creds.ClientID)
	assert.Equal(t, "secret-456", creds.ClientSecret)
}

func TestEnvSource_MissingClientID(t *testing.T) {
	_, err := NewEnvSource().Credentials("nonexistent-provider")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONNECT_NONEXISTENT_PROVIDER_CLIENT_ID")
}

func TestEnvSource_SecretOptional(t *testing.T) {
	t.Setenv("CONNECT_GITHUB_CLIENT_ID", "id-123")

	creds, err := NewEnvSource().Credentials("github")
	require.NoError(t, err)
	assert.Equal(t, "id-123", creds.ClientID)
	assert.Empty(t, creds.ClientSecret)
}

func TestEnvSource_DashesNormalized(t *testing.T) {
	t.Setenv("CONNECT_MY_CRM_CLIENT_ID", "id-123")

	creds, err := NewEnvSource().Credentials("my-crm")
	require.NoError(t, err)
	assert.Equal(t, "id-123", creds.ClientID)
}

func TestEnvSource_CustomPrefix(t *testing.T) {
	t.Setenv("STAGING_GOOGLE_CLIENT_ID", "id-staging")

	creds, err := NewEnvSourceWithPrefix("STAGING").Credentials("google")
	require.NoError(t, err)
	assert.Equal(t, "id-staging", creds.ClientID)
}

func TestStatic_Credentials(t *testing.T) {
	src := Static{"acme": {ClientID: "id", ClientSecret: "sec"}}

	creds, err := src.Credentials("acme")
	require.NoError(t, err)
	assert.Equal(t, "id", creds.ClientID)

	_, err = src.Credentials("other")
	assert.Error(t, err)
}
