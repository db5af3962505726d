// Package providers defines the static catalog of third-party OAuth 2.0
// providers that skills can connect to: authorization and token endpoints,
// optional revocation endpoints, default scopes, and PKCE support.
//
// The catalog is read-only after construction. Consumers receive an
// explicitly constructed *Registry rather than reaching for a package
// global, so tests can run against small fixture catalogs and multiple
// tenant configurations can coexist in one process.
package providers
