package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRedirectHost(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"https URI", "https://app.example.com/callback", "app.example.com"},
		{"URI with per-user path", "https://app.example.com/u/42/callback", "app.example.com"},
		{"URI with port", "http://localhost:8080/callback", "localhost:8080"},
		{"empty", "", "unknown"},
		{"not a URL", "://bad", "unknown"},
		{"relative path", "/callback", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRedirectHost(tt.uri))
		})
	}
}
