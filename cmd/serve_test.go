package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		httpAddr string
		expected string
	}{
		{
			name:     "configured base URL",
			baseURL:  "https://connect.example.com",
			httpAddr: ":8080",
			expected: "https://connect.example.com/v1/connections/callback",
		},
		{
			name:     "auto-detected localhost from port-only addr",
			baseURL:  "",
			httpAddr: ":8080",
			expected: "http://localhost:8080/v1/connections/callback",
		},
		{
			name:     "auto-detected from host:port addr",
			baseURL:  "",
			httpAddr: "10.0.0.5:8080",
			expected: "http://10.0.0.5:8080/v1/connections/callback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, callbackURL(tt.baseURL, tt.httpAddr))
		})
	}
}

func TestNewServeCmd_Defaults(t *testing.T) {
	cmd := newServeCmd()

	transport, err := cmd.Flags().GetString("transport")
	assert.NoError(t, err)
	assert.Equal(t, "stdio", transport)

	httpAddr, err := cmd.Flags().GetString("http-addr")
	assert.NoError(t, err)
	assert.Equal(t, ":8080", httpAddr)

	metricsEnabled, err := cmd.Flags().GetBool("metrics-enabled")
	assert.NoError(t, err)
	assert.True(t, metricsEnabled)
}

func TestLoadServeEnvVars(t *testing.T) {
	t.Setenv("CONNECT_HTTP_ADDR", ":9999")
	t.Setenv("CONNECT_BASE_URL", "https://connect.example.com")
	t.Setenv("METRICS_ENABLED", "false")

	cmd := newServeCmd()
	cfg := ServeConfig{
		HTTPAddr: ":8080",
		Metrics:  MetricsConfig{Enabled: true, Addr: ":9090"},
	}
	loadServeEnvVars(cmd, &cfg)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "https://connect.example.com", cfg.BaseURL)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadServeEnvVars_FlagsWin(t *testing.T) {
	t.Setenv("CONNECT_HTTP_ADDR", ":9999")

	cmd := newServeCmd()
	assert.NoError(t, cmd.Flags().Set("http-addr", ":7777"))

	cfg := ServeConfig{HTTPAddr: ":7777"}
	loadServeEnvVars(cmd, &cfg)

	assert.Equal(t, ":7777", cfg.HTTPAddr)
}
