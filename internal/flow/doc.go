// Package flow implements the OAuth 2.0 authorization code flow (with
// PKCE where the provider supports it) on behalf of skill integrations.
//
// A flow has two halves separated by a browser round trip through the
// provider. StartAuthorization generates the state token and optional PKCE
// verifier, parks the flow context in the PendingStore, and returns the
// authorization URL. CompleteAuthorization redeems the state token from
// the provider callback and exchanges the authorization code for tokens.
//
// The package holds no completed tokens: a finished Connection is handed
// to the caller and forgotten. The only state kept here is the pending
// store, which is memory-bounded by TTL expiry and a background sweep.
package flow
