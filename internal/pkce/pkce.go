package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// Code verifier length bounds from RFC 7636.
const (
	// MinVerifierLength is the minimum length for a code_verifier.
	MinVerifierLength = 43

	// MaxVerifierLength is the maximum length for a code_verifier.
	MaxVerifierLength = 128
)

// ChallengeMethodS256 is the only code_challenge_method this package
// produces. The "plain" method is insecure and violates OAuth 2.1.
const ChallengeMethodS256 = "S256"

// GenerateVerifier generates a random code verifier for PKCE.
// The verifier is a cryptographically random string using the characters
// [A-Z] / [a-z] / [0-9] / "-" / "_" with a minimum length of 43 characters
// per RFC 7636.
func GenerateVerifier() (string, error) {
	return generateVerifierFrom(rand.Reader)
}

// generateVerifierFrom is the test seam for GenerateVerifier. Production
// code paths always pass crypto/rand.Reader; tests may pass a fixed
// reader to make outputs reproducible.
func generateVerifierFrom(r io.Reader) (string, error) {
	// 32 bytes (256 bits) yields exactly 43 characters when base64url
	// encoded, the RFC 7636 minimum.
	b := make([]byte, 32)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Base64 URL encoding without padding as per RFC 7636
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeriveChallenge derives the code challenge from a code verifier using
// the S256 method: code_challenge = BASE64URL(SHA256(ASCII(code_verifier))).
// The derivation is pure and deterministic; the provider recomputes it
// from the verifier during token exchange to validate the binding.
func DeriveChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// VerifyChallenge reports whether the verifier matches the challenge
// under the S256 method.
func VerifyChallenge(verifier, challenge string) bool {
	return DeriveChallenge(verifier) == challenge
}
