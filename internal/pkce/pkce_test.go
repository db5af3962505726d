package pkce

import (
	"bytes"
	"regexp"
	"testing"
)

var base64urlPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestGenerateVerifier_Length(t *testing.T) {
	for i := 0; i < 50; i++ {
		verifier, err := GenerateVerifier()
		if err != nil {
			t.Fatalf("GenerateVerifier() error = %v", err)
		}

		if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
			t.Errorf("verifier length = %d, want within [%d, %d]", len(verifier), MinVerifierLength, MaxVerifierLength)
		}

		if !base64urlPattern.MatchString(verifier) {
			t.Errorf("verifier contains characters outside the base64url alphabet: %q", verifier)
		}
	}
}

func TestGenerateVerifier_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		verifier, err := GenerateVerifier()
		if err != nil {
			t.Fatalf("GenerateVerifier() error = %v", err)
		}
		if seen[verifier] {
			t.Fatalf("GenerateVerifier() produced a duplicate: %q", verifier)
		}
		seen[verifier] = true
	}
}

func TestGenerateVerifierFrom_FixedReader(t *testing.T) {
	// Fixed entropy through the test seam must yield a reproducible verifier.
	seed := bytes.Repeat([]byte{0x42}, 32)

	first, err := generateVerifierFrom(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("generateVerifierFrom() error = %v", err)
	}

	second, err := generateVerifierFrom(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("generateVerifierFrom() error = %v", err)
	}

	if first != second {
		t.Errorf("verifiers from identical entropy differ: %q vs %q", first, second)
	}

	if len(first) != 43 {
		t.Errorf("verifier length = %d, want 43 for 32 bytes of entropy", len(first))
	}
}

func TestGenerateVerifierFrom_ShortReader(t *testing.T) {
	_, err := generateVerifierFrom(bytes.NewReader([]byte{0x01, 0x02}))
	if err == nil {
		t.Error("generateVerifierFrom() should fail when entropy is exhausted")
	}
}

func TestDeriveChallenge_Deterministic(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	first := DeriveChallenge(verifier)
	second := DeriveChallenge(verifier)

	if first != second {
		t.Errorf("DeriveChallenge() is not deterministic: %q vs %q", first, second)
	}

	if !base64urlPattern.MatchString(first) {
		t.Errorf("challenge contains characters outside the base64url alphabet: %q", first)
	}

	// SHA-256 digest is 32 bytes, so the unpadded base64url form is 43 chars.
	if len(first) != 43 {
		t.Errorf("challenge length = %d, want 43", len(first))
	}
}

func TestDeriveChallenge_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := DeriveChallenge(verifier); got != want {
		t.Errorf("DeriveChallenge() = %q, want %q", got, want)
	}
}

func TestDeriveChallenge_DistinctInputs(t *testing.T) {
	a, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}
	b, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}

	if DeriveChallenge(a) == DeriveChallenge(b) {
		t.Errorf("distinct verifiers produced identical challenges")
	}
}

func TestVerifyChallenge(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}
	challenge := DeriveChallenge(verifier)

	if !VerifyChallenge(verifier, challenge) {
		t.Error("VerifyChallenge() = false for a matching pair")
	}

	if VerifyChallenge(verifier+"x", challenge) {
		t.Error("VerifyChallenge() = true for a mismatched verifier")
	}
}
