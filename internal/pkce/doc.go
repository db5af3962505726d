// Package pkce implements Proof Key for Code Exchange (RFC 7636) verifier
// and challenge generation for OAuth 2.0 authorization code flows.
//
// PKCE binds an authorization code to a caller-held secret (the verifier)
// via a publicly transmitted derived value (the challenge), preventing
// code interception attacks. Only the S256 challenge method is supported;
// the "plain" method is insecure and violates OAuth 2.1.
//
// All randomness comes from crypto/rand. Substituting a non-cryptographic
// source breaks PKCE's security guarantee and must never happen, including
// in tests: tests inject a fixed reader through an unexported seam rather
// than touching the production code path.
package pkce
