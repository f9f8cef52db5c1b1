package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cowork-market/cowork/internal/rbac"
)

// Provider is the read accessor consumers use to inspect session state.
type Provider interface {
	Snapshot() Snapshot
}

// Controller is a Provider that can be refreshed and torn down.
type Controller interface {
	Provider
	Refresh(ctx context.Context)
	Wait(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// StaticProvider serves a fixed snapshot.
type StaticProvider Snapshot

func (p StaticProvider) Snapshot() Snapshot {
	return Snapshot(p).clone()
}

// FetchObserver receives the outcome of every applied fetch.
type FetchObserver interface {
	ObserveSessionFetch(outcome string)
}

const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeError         = "error"
	OutcomeDiscarded     = "discarded"
)

// Store owns the session state of one consumer. The fetch completion is the
// only writer; any number of goroutines may read snapshots. Results that
// arrive after Close, SignOut or a newer fetch are discarded.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	observer FetchObserver

	mu     sync.RWMutex
	snap   Snapshot
	token  string
	gen    uint64
	done   chan struct{}
	closed bool
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for fetch failures.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver reports fetch outcomes to o.
func WithObserver(o FetchObserver) StoreOption {
	return func(s *Store) { s.observer = o }
}

// NewStore returns a Store in the loading state.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
		snap:    Snapshot{IsLoading: true},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Start begins resolving the session for token. An empty token settles the
// store as anonymous without calling the backend.
func (s *Store) Start(ctx context.Context, token string) {
	s.begin(ctx, token, false)
}

// Refresh re-runs the fetch with the last token, bypassing caches.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	s.begin(WithoutCache(ctx), token, true)
}

func (s *Store) begin(ctx context.Context, token string, keep bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	done := make(chan struct{})
	s.done = done
	s.token = token
	if keep {
		s.snap.IsLoading = true
	} else {
		s.snap = Snapshot{IsLoading: true}
	}
	s.mu.Unlock()

	if token == "" {
		s.apply(gen, done, Anonymous(), OutcomeAnonymous)
		return
	}
	go s.fetch(ctx, gen, done, token)
}

func (s *Store) fetch(ctx context.Context, gen uint64, done chan struct{}, token string) {
	identity, err := s.backend.ResolveIdentity(ctx, token)
	if err != nil {
		s.fail(gen, done, fmt.Errorf("session: resolve identity: %w", err))
		return
	}

	var (
		profile *Profile
		roles   []rbac.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.backend.FetchProfile(gctx, identity.ID)
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("session: fetch profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		r, err := s.backend.FetchRoles(gctx, identity.ID)
		if err != nil {
			return fmt.Errorf("session: fetch roles: %w", err)
		}
		roles = rbac.Normalize(r)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.fail(gen, done, err)
		return
	}

	s.apply(gen, done, Snapshot{
		Identity:        &identity,
		Profile:         profile,
		Roles:           roles,
		IsAuthenticated: true,
	}, OutcomeAuthenticated)
}

func (s *Store) fail(gen uint64, done chan struct{}, err error) {
	if s.apply(gen, done, Snapshot{Err: err}, OutcomeError) {
		s.logger.Warn("session fetch failed", slog.Any("error", err))
	}
}

func (s *Store) apply(gen uint64, done chan struct{}, snap Snapshot, outcome string) bool {
	s.mu.Lock()
	current := gen == s.gen && !s.closed
	if current {
		s.snap = snap
	}
	s.mu.Unlock()
	close(done)
	if !current {
		outcome = OutcomeDiscarded
	}
	if s.observer != nil {
		s.observer.ObserveSessionFetch(outcome)
	}
	return current
}

// Wait blocks until the current fetch settles or ctx ends.
func (s *Store) Wait(ctx context.Context) error {
	for {
		s.mu.RLock()
		done, closed := s.done, s.closed
		s.mu.RUnlock()
		if closed {
			return nil
		}
		select {
		case <-done:
			s.mu.RLock()
			settled := s.done == done
			s.mu.RUnlock()
			if settled {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SignOut tears the session down: in-flight results are dropped, the
// snapshot becomes anonymous and cached data for the identity is evicted.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	identity := s.snap.Identity
	s.gen++
	s.snap = Anonymous()
	s.token = ""
	settled := make(chan struct{})
	close(settled)
	s.done = settled
	s.mu.Unlock()

	if identity == nil {
		return nil
	}
	if inv, ok := s.backend.(Invalidator); ok {
		if err := inv.Invalidate(ctx, identity.ID); err != nil {
			return fmt.Errorf("session: invalidate: %w", err)
		}
	}
	return nil
}

// Close detaches the store from its consumer. Later fetch results are
// ignored.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
}

var _ Controller = (*Store)(nil)
