package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cowork-market/cowork/internal/rbac"
)

// FakeAccount is a fixture served by FakeBackend.
type FakeAccount struct {
	Identity Identity
	Profile  *Profile
	Roles    []rbac.Role
}

// FakeBackend serves registered fixtures keyed by token. It records the
// order of calls and exposes error fields for behavior injection. Roles are
// never implied: an account has exactly the roles it was registered with.
type FakeBackend struct {
	mu       sync.Mutex
	byToken  map[string]FakeAccount
	byID     map[uuid.UUID]FakeAccount
	calls    []string
	hold     chan struct{}
	identErr error
	profErr  error
	rolesErr error
}

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		byToken: make(map[string]FakeAccount),
		byID:    make(map[uuid.UUID]FakeAccount),
	}
}

// Register maps token to acct.
func (f *FakeBackend) Register(token string, acct FakeAccount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byToken[token] = acct
	f.byID[acct.Identity.ID] = acct
}

// SetErrors injects failures for the next calls. Nil clears a failure.
func (f *FakeBackend) SetErrors(identity, profile, roles error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identErr, f.profErr, f.rolesErr = identity, profile, roles
}

// Hold makes ResolveIdentity block until the returned release func runs.
func (f *FakeBackend) Hold() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the recorded call log.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// ResolveIdentity returns the identity registered for token.
func (f *FakeBackend) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	f.record("identity")
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identErr != nil {
		return Identity{}, f.identErr
	}
	acct, ok := f.byToken[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return acct.Identity, nil
}

// FetchProfile returns the fixture profile for id.
func (f *FakeBackend) FetchProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	f.record("profile:" + id.String())
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profErr != nil {
		return nil, f.profErr
	}
	acct, ok := f.byID[id]
	if !ok || acct.Profile == nil {
		return nil, ErrProfileNotFound
	}
	p := *acct.Profile
	return &p, nil
}

// FetchRoles returns the fixture roles for id.
func (f *FakeBackend) FetchRoles(ctx context.Context, id uuid.UUID) ([]rbac.Role, error) {
	f.record("roles:" + id.String())
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	acct := f.byID[id]
	out := make([]rbac.Role, len(acct.Roles))
	copy(out, acct.Roles)
	return out, nil
}

// Invalidate records the eviction request.
func (f *FakeBackend) Invalidate(ctx context.Context, id uuid.UUID) error {
	f.record("invalidate:" + id.String())
	return nil
}

var (
	_ Backend     = (*FakeBackend)(nil)
	_ Invalidator = (*FakeBackend)(nil)
)
