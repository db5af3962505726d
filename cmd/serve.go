package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/agenticmail/connectd/internal/credentials"
	"github.com/agenticmail/connectd/internal/flow"
	"github.com/agenticmail/connectd/internal/instrumentation"
	"github.com/agenticmail/connectd/internal/providers"
	"github.com/agenticmail/connectd/internal/server"
	"github.com/agenticmail/connectd/internal/tools/connect_tools"
)

// ServeConfig holds the resolved configuration for the serve command.
type ServeConfig struct {
	// Transport is the MCP transport type: "stdio" or "streamable-http".
	Transport string

	// HTTPAddr is the address for the connection API server (e.g., ":8080").
	HTTPAddr string

	// MCPAddr is the address for the MCP server when using the
	// streamable-http transport (e.g., ":8081").
	MCPAddr string

	// BaseURL is the public base URL under which the connection API is
	// reachable. Used to advertise the provider callback URL.
	BaseURL string

	// CredentialPrefix is the environment variable prefix for provider
	// client credentials (default: "CONNECT").
	CredentialPrefix string

	// StateTTL is how long a started authorization stays redeemable.
	StateTTL time.Duration

	// SweepInterval is how often expired pending authorizations are swept.
	SweepInterval time.Duration

	// ExchangeTimeout bounds each token exchange HTTP request.
	ExchangeTimeout time.Duration

	// Debug enables debug logging.
	Debug bool

	// Metrics configures the dedicated Prometheus metrics server.
	Metrics MetricsConfig
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var cfg ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the connection broker",
		Long: `Start the connection broker: the HTTP connection API plus, optionally,
an MCP (Model Context Protocol) server so AI assistants can list providers
and start authorization flows.

The connection API always runs; it owns the provider callback endpoint
(GET /v1/connections/callback) that completes flows.

Supported MCP transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on a separate port

Provider credentials:
  Client credentials are read from the environment per provider:
    CONNECT_<PROVIDER>_CLIENT_ID and CONNECT_<PROVIDER>_CLIENT_SECRET
  e.g. CONNECT_GOOGLE_CLIENT_ID / CONNECT_GOOGLE_CLIENT_SECRET.
  The secret may be empty for public PKCE clients.

Base URL:
  For deployed instances set --base-url (or CONNECT_BASE_URL) to the
  public URL of the connection API, so the advertised callback URL
  matches what is registered with the providers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &cfg)
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "MCP transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", server.DefaultAPIAddr, "Connection API server address. Can also use CONNECT_HTTP_ADDR env var.")
	cmd.Flags().StringVar(&cfg.MCPAddr, "mcp-addr", ":8081", "MCP server address (for streamable-http transport). Can also use CONNECT_MCP_ADDR env var.")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "", "Public base URL of the connection API (e.g. https://connect.example.com). Can also use CONNECT_BASE_URL env var.")
	cmd.Flags().StringVar(&cfg.CredentialPrefix, "credential-prefix", credentials.DefaultEnvPrefix, "Environment variable prefix for provider client credentials")
	cmd.Flags().DurationVar(&cfg.StateTTL, "state-ttl", flow.DefaultStateTTL, "How long a started authorization stays redeemable")
	cmd.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", flow.DefaultSweepInterval, "How often expired pending authorizations are swept")
	cmd.Flags().DurationVar(&cfg.ExchangeTimeout, "exchange-timeout", 30*time.Second, "Timeout for each token exchange request to a provider")
	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills in serve configuration from environment variables.
// Environment variables only apply when the corresponding flag was not
// explicitly set by the user.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig) {
	if !cmd.Flags().Changed("http-addr") {
		if addr := os.Getenv("CONNECT_HTTP_ADDR"); addr != "" {
			cfg.HTTPAddr = addr
		}
	}
	if !cmd.Flags().Changed("mcp-addr") {
		if addr := os.Getenv("CONNECT_MCP_ADDR"); addr != "" {
			cfg.MCPAddr = addr
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CONNECT_BASE_URL")
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v == "false" {
			cfg.Metrics.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Metrics.Addr = addr
		}
	}
}

func runServe(cfg ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so stdio transport keeps stdout for the protocol.
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped with error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	// Assemble the flow service
	registry := providers.Default()
	creds := credentials.NewEnvSourceWithPrefix(cfg.CredentialPrefix)

	pending := flow.NewPendingStoreWithLogger(cfg.StateTTL, cfg.SweepInterval, logger)
	defer pending.Stop()

	exchanger := flow.NewTokenExchangerWithClient(
		&http.Client{Timeout: cfg.ExchangeTimeout}, logger)

	flowConfig := flow.ServiceConfig{
		Registry:    registry,
		Pending:     pending,
		Exchanger:   exchanger,
		Credentials: creds,
		Logger:      logger,
	}
	if provider.Enabled() {
		flowConfig.Metrics = provider.Metrics()
	}

	flows, err := flow.NewService(flowConfig)
	if err != nil {
		return fmt.Errorf("failed to create flow service: %w", err)
	}

	serverContext := server.NewServerContext(shutdownCtx, flows, registry)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	var audit *instrumentation.AuditLogger
	if instrConfig.AuditLogging.Enabled {
		audit = instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
	}

	apiConfig := server.APIServerConfig{
		Addr:          cfg.HTTPAddr,
		ServerContext: serverContext,
		Audit:         audit,
		Logger:        logger,
	}
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		apiConfig.Metrics = provider.Metrics()
	}

	// Token persistence is an external collaborator; without one,
	// completed connections are logged and discarded (development only).
	apiServer, err := server.NewAPIServer(apiConfig)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	apiDone := make(chan error, 1)
	go func() {
		defer close(apiDone)
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiDone <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Error("API server shutdown failed", "error", err)
		}
	}()
	apiServer.Health().SetReady(true)

	logger.Info("connection API started",
		"addr", cfg.HTTPAddr,
		"callback_url", callbackURL(cfg.BaseURL, cfg.HTTPAddr),
		"providers", registry.Len())

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("connectd", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := connect_tools.RegisterConnectTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register connection tools: %w", err)
	}

	// Start the appropriate server based on transport type
	switch cfg.Transport {
	case "stdio":
		return runStdioServer(shutdownCtx, mcpSrv, apiDone)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, cfg.MCPAddr, apiDone, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

// callbackURL derives the provider callback URL to advertise. Falls back to
// localhost auto-detection for development when no base URL is configured.
func callbackURL(baseURL, httpAddr string) string {
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", httpAddr)
		if httpAddr != "" && httpAddr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", httpAddr)
		}
	}
	return baseURL + "/v1/connections/callback"
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, apiDone <-chan error) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-apiDone:
		if err != nil {
			return fmt.Errorf("connection API stopped with error: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, apiDone <-chan error, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("starting MCP server", "transport", "streamable-http", "addr", addr)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping MCP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down MCP server: %w", err)
		}
	case err := <-apiDone:
		if err != nil {
			return fmt.Errorf("connection API stopped with error: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("MCP server stopped with error: %w", err)
		}
	}

	return nil
}
