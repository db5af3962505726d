package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinition(id string) Definition {
	return Definition{
		ID:            id,
		Name:          id,
		AuthURL:       "https://auth.example.com/authorize",
		TokenURL:      "https://auth.example.com/token",
		DefaultScopes: []string{"read"},
	}
}

func TestRegistry_Get(t *testing.T) {
	r, err := NewRegistry(testDefinition("acme"), testDefinition("globex"))
	require.NoError(t, err)

	d, err := r.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", d.ID)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	r, err := NewRegistry(testDefinition("acme"))
	require.NoError(t, err)

	_, err = r.Get("initech")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProvider))
	assert.Contains(t, err.Error(), "initech")
}

func TestRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry(testDefinition("acme"), testDefinition("acme"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRegistry_IncompleteDefinition(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "missing id",
			def:  Definition{AuthURL: "https://a", TokenURL: "https://t"},
		},
		{
			name: "missing auth URL",
			def:  Definition{ID: "x", TokenURL: "https://t"},
		},
		{
			name: "missing token URL",
			def:  Definition{ID: "x", AuthURL: "https://a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r, err := NewRegistry(testDefinition("acme"))
	require.NoError(t, err)

	d, err := r.Get("acme")
	require.NoError(t, err)

	// Mutating a returned definition must not leak into the catalog.
	d.DefaultScopes[0] = "mutated"

	again, err := r.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, again.DefaultScopes)
}

func TestRegistry_ListOrdered(t *testing.T) {
	r, err := NewRegistry(testDefinition("globex"), testDefinition("acme"), testDefinition("initech"))
	require.NoError(t, err)

	defs := r.List()
	require.Len(t, defs, 3)
	assert.Equal(t, "acme", defs[0].ID)
	assert.Equal(t, "globex", defs[1].ID)
	assert.Equal(t, "initech", defs[2].ID)
}

func TestDefault_Catalog(t *testing.T) {
	r := Default()
	require.NotZero(t, r.Len())

	google, err := r.Get("google")
	require.NoError(t, err)
	assert.True(t, google.SupportsPKCE)
	assert.NotEmpty(t, google.AuthURL)
	assert.NotEmpty(t, google.TokenURL)
	assert.NotEmpty(t, google.RevokeURL)
	assert.NotEmpty(t, google.DefaultScopes)

	slack, err := r.Get("slack")
	require.NoError(t, err)
	assert.False(t, slack.SupportsPKCE)

	github, err := r.Get("github")
	require.NoError(t, err)
	assert.False(t, github.SupportsPKCE)

	// Every catalog entry must be complete enough to start a flow.
	for _, d := range r.List() {
		assert.NotEmpty(t, d.Name, "provider %s missing display name", d.ID)
		assert.NotEmpty(t, d.AuthURL, "provider %s missing auth URL", d.ID)
		assert.NotEmpty(t, d.TokenURL, "provider %s missing token URL", d.ID)
	}
}
