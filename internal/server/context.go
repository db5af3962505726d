package server

import (
	"context"
	"sync"

	"github.com/agenticmail/connectd/internal/flow"
	"github.com/agenticmail/connectd/internal/instrumentation"
	"github.com/agenticmail/connectd/internal/providers"
)

// ServerContext holds the shared dependencies of the running server: the
// flow service, the provider catalog, and the shutdown state the readiness
// probe reports on.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	flows    *flow.Service
	registry *providers.Registry
	metrics  *instrumentation.Metrics
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context wrapping the given flow
// service and provider registry.
func NewServerContext(ctx context.Context, flows *flow.Service, registry *providers.Registry) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		flows:    flows,
		registry: registry,
	}
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Flows returns the authorization flow service.
func (sc *ServerContext) Flows() *flow.Service {
	return sc.flows
}

// Registry returns the provider catalog.
func (sc *ServerContext) Registry() *providers.Registry {
	return sc.registry
}

// SetMetrics attaches a metrics recorder for tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the attached metrics recorder, or nil when
// instrumentation is not configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
