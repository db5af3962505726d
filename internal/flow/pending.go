package flow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultStateTTL is how long a pending authorization stays redeemable.
	// A user who has not completed the provider redirect within this window
	// must restart the flow.
	DefaultStateTTL = 10 * time.Minute

	// DefaultSweepInterval is how often the background sweep removes
	// expired pending authorizations.
	DefaultSweepInterval = 1 * time.Minute

	// stateTokenBytes is the entropy of a state token. 32 bytes (256 bits)
	// hex-encode to 64 characters.
	stateTokenBytes = 32

	// maxCreateAttempts bounds token regeneration on collision. With
	// 256-bit tokens a collision indicates a broken random source, so the
	// bound exists only to turn that into an error instead of a spin.
	maxCreateAttempts = 5
)

// PendingAuthorization is the flow context stored between the authorization
// redirect and the provider callback.
type PendingAuthorization struct {
	// SkillID identifies the skill integration being connected.
	SkillID string

	// OrgID identifies the organization the connection belongs to.
	OrgID string

	// ProviderID is the registry id of the provider being authorized.
	ProviderID string

	// CodeVerifier is the PKCE verifier, present only when the provider
	// supports PKCE.
	CodeVerifier string

	// RedirectURI is the callback URL registered with the provider.
	RedirectURI string

	// CreatedAt is when the flow started. Set by the store.
	CreatedAt time.Time
}

// PendingStore correlates opaque state tokens with in-flight authorization
// flows. Entries are redeemable exactly once and only within the TTL; a
// background sweep bounds memory from flows the user abandoned.
//
// The store is the only shared mutable resource in the subsystem and is
// safe for concurrent use from any number of simultaneous flows.
type PendingStore struct {
	entries map[string]PendingAuthorization
	mu      sync.Mutex

	ttl           time.Duration
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	sweepDone     chan struct{}
	stopOnce      sync.Once

	logger *slog.Logger

	// now is the clock used for TTL checks. Overridden in tests to assert
	// boundary behavior without sleeping wall-clock time.
	now func() time.Time

	// onRemoved, when set, is notified with the number of entries each
	// removal takes out of the store, whether by Consume or by the
	// background sweep. Called without the store lock held.
	onRemoved func(removed int)
}

// NewPendingStore creates a pending-authorization store with default TTL
// and sweep interval.
func NewPendingStore() *PendingStore {
	return NewPendingStoreWithLogger(DefaultStateTTL, DefaultSweepInterval, slog.Default())
}

// NewPendingStoreWithTTL creates a store with a custom TTL and sweep
// interval.
func NewPendingStoreWithTTL(ttl, sweepInterval time.Duration) *PendingStore {
	return NewPendingStoreWithLogger(ttl, sweepInterval, slog.Default())
}

// NewPendingStoreWithLogger creates a store with a custom TTL, sweep
// interval, and logger. The background sweep starts immediately and runs
// until Stop is called.
func NewPendingStoreWithLogger(ttl, sweepInterval time.Duration, logger *slog.Logger) *PendingStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &PendingStore{
		entries:       make(map[string]PendingAuthorization),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		sweepTicker:   time.NewTicker(sweepInterval),
		sweepDone:     make(chan struct{}),
		logger:        logger,
		now:           time.Now,
	}

	go s.sweep()

	return s
}

// Create stores the given flow context under a fresh state token and
// returns the token. A token collision is an invariant violation, never a
// silent overwrite: the token is regenerated, and the call fails if
// regeneration keeps colliding.
func (s *PendingStore) Create(p PendingAuthorization) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		state, err := newStateToken()
		if err != nil {
			return "", err
		}
		if _, exists := s.entries[state]; exists {
			s.logger.Error("state token collision, regenerating",
				"attempt", attempt+1)
			continue
		}

		p.CreatedAt = s.now()
		s.entries[state] = p
		return state, nil
	}

	return "", fmt.Errorf("failed to generate a unique state token after %d attempts", maxCreateAttempts)
}

// Consume atomically looks up and removes the flow context for the given
// state token. It returns the context only if the token is present and its
// age is within the TTL; otherwise it returns ErrStateNotFoundOrExpired.
// A repeated call with the same token always fails, which makes redemption
// at-most-once.
func (s *PendingStore) Consume(state string) (PendingAuthorization, error) {
	s.mu.Lock()
	p, ok := s.entries[state]
	if !ok {
		s.mu.Unlock()
		return PendingAuthorization{}, ErrStateNotFoundOrExpired
	}

	// Remove unconditionally: an expired entry is as dead as a consumed one.
	delete(s.entries, state)
	expired := s.now().Sub(p.CreatedAt) >= s.ttl
	onRemoved := s.onRemoved
	s.mu.Unlock()

	if onRemoved != nil {
		onRemoved(1)
	}

	if expired {
		return PendingAuthorization{}, ErrStateNotFoundOrExpired
	}

	return p, nil
}

// setRemovalListener registers a callback notified with the number of
// entries removed from the store, by Consume and by the background sweep
// alike. The flow service uses it to keep the pending-authorization gauge
// in step with entries that die by TTL and are never redeemed.
func (s *PendingStore) setRemovalListener(fn func(removed int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoved = fn
}

// Len returns the number of pending authorizations currently stored.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop halts the background sweep. Safe to call more than once. Stopping
// the sweep does not affect Consume's TTL check, which never depends on
// the sweep having run.
func (s *PendingStore) Stop() {
	s.stopOnce.Do(func() {
		s.sweepTicker.Stop()
		close(s.sweepDone)
	})
}

// sweep periodically removes expired entries until Stop is called.
func (s *PendingStore) sweep() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.runSweep()
		case <-s.sweepDone:
			return
		}
	}
}

// runSweep executes one sweep pass. The sweep is advisory housekeeping;
// a failure in one pass must never break the recurring schedule or take
// the process down.
func (s *PendingStore) runSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pending authorization sweep panicked", "panic", r)
		}
	}()

	removed := s.sweepExpired()
	if removed > 0 {
		s.logger.Info("swept expired pending authorizations", "count", removed)
	}
}

// sweepExpired removes every entry older than the TTL and returns how many
// were removed.
func (s *PendingStore) sweepExpired() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for state, p := range s.entries {
		if now.Sub(p.CreatedAt) >= s.ttl {
			delete(s.entries, state)
			removed++
		}
	}
	onRemoved := s.onRemoved
	s.mu.Unlock()

	if removed > 0 && onRemoved != nil {
		onRemoved(removed)
	}
	return removed
}

// newStateToken returns a fresh cryptographically random state token,
// hex-encoded.
func newStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
