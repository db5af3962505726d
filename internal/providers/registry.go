package providers

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProvider is returned when a provider id is not present in the
// registry. It is fatal to the flow and surfaced immediately when a flow
// starts.
var ErrUnknownProvider = errors.New("unknown provider")

// Definition describes a third-party OAuth 2.0 provider: its endpoints,
// default scopes, and whether it supports PKCE (RFC 7636). Definitions are
// immutable once a Registry is constructed.
type Definition struct {
	// ID is the stable identifier used by skills and the dashboard
	// (e.g. "google", "github").
	ID string

	// Name is the human-readable display name for the "connect this
	// integration" UI.
	Name string

	// AuthURL is the provider's authorization endpoint.
	AuthURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// RevokeURL is the provider's token revocation endpoint, if it has one.
	RevokeURL string

	// DefaultScopes are requested when the caller does not ask for
	// specific scopes. Order is preserved as some providers are
	// order-sensitive in their consent UI.
	DefaultScopes []string

	// SupportsPKCE indicates whether the provider accepts code_challenge /
	// code_verifier parameters. A PKCE verifier must never be generated
	// for, or sent to, a provider without this flag.
	SupportsPKCE bool
}

// validate checks that a definition carries the fields every flow needs.
func (d Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("provider definition missing id")
	}
	if d.AuthURL == "" {
		return fmt.Errorf("provider %q missing authorization URL", d.ID)
	}
	if d.TokenURL == "" {
		return fmt.Errorf("provider %q missing token URL", d.ID)
	}
	return nil
}

// clone returns a copy whose scope slice is independent of the original,
// so callers can never mutate the registry's catalog through a returned
// definition.
func (d Definition) clone() Definition {
	out := d
	if d.DefaultScopes != nil {
		out.DefaultScopes = make([]string, len(d.DefaultScopes))
		copy(out.DefaultScopes, d.DefaultScopes)
	}
	return out
}

// Registry is a static, read-only catalog of provider definitions.
// It is safe for concurrent use: there is no mutation after construction.
// A runtime catalog change is expressed by constructing a new Registry and
// swapping the reference atomically at the injection point.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a registry from the given definitions. Duplicate ids
// and incomplete definitions are construction errors.
func NewRegistry(defs ...Definition) (*Registry, error) {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, exists := m[d.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", d.ID)
		}
		m[d.ID] = d.clone()
	}
	return &Registry{defs: m}, nil
}

// Get returns the definition for the given provider id, or an error
// wrapping ErrUnknownProvider when the id is absent from the catalog.
func (r *Registry) Get(id string) (Definition, error) {
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%q: %w", id, ErrUnknownProvider)
	}
	return d.clone(), nil
}

// List returns all definitions ordered by id, for display in the
// dashboard's connect page.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of providers in the catalog.
func (r *Registry) Len() int {
	return len(r.defs)
}
