package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/cowork-market/cowork/internal/rbac"
)

type bypassCacheKey struct{}

// WithoutCache marks ctx so CachedBackend reads through to the wrapped
// backend. Fresh results are still written back.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassCacheKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassCacheKey{}).(bool)
	return v
}

// CachedBackend keeps profile and role lookups in Redis. Identity
// resolution is never cached.
type CachedBackend struct {
	next   Backend
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

type profileEntry struct {
	Found   bool     `json:"found"`
	Profile *Profile `json:"profile,omitempty"`
}

type rolesEntry struct {
	Roles []string `json:"roles"`
}

// NewCachedBackend wraps next with a Redis cache.
func NewCachedBackend(next Backend, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedBackend{next: next, client: client, ttl: ttl, logger: logger}
}

// ResolveIdentity delegates to the wrapped backend.
func (c *CachedBackend) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	return c.next.ResolveIdentity(ctx, token)
}

// FetchProfile returns the cached profile or loads it.
func (c *CachedBackend) FetchProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	key := profileKey(id)
	var entry profileEntry
	if c.load(ctx, key, &entry) {
		if !entry.Found {
			return nil, ErrProfileNotFound
		}
		return entry.Profile, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.next.FetchProfile(ctx, id)
		switch {
		case errors.Is(err, ErrProfileNotFound):
			c.store(ctx, key, profileEntry{Found: false})
		case err != nil:
			return nil, err
		default:
			c.store(ctx, key, profileEntry{Found: true, Profile: p})
		}
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

// FetchRoles returns the cached role set or loads it.
func (c *CachedBackend) FetchRoles(ctx context.Context, id uuid.UUID) ([]rbac.Role, error) {
	key := rolesKey(id)
	var entry rolesEntry
	if c.load(ctx, key, &entry) {
		return rbac.ParseRoles(entry.Roles), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		roles, err := c.next.FetchRoles(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, rolesEntry{Roles: rbac.Strings(roles)})
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return rbac.Normalize(v.([]rbac.Role)), nil
}

// Invalidate evicts cached entries for id.
func (c *CachedBackend) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, profileKey(id), rolesKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (c *CachedBackend) load(ctx context.Context, key string, dest any) bool {
	if cacheBypassed(ctx) {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("session cache get", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("session cache decode", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *CachedBackend) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("session cache set", slog.String("key", key), slog.Any("error", err))
	}
}

func profileKey(id uuid.UUID) string {
	return "session:profile:" + id.String()
}

func rolesKey(id uuid.UUID) string {
	return "session:roles:" + id.String()
}

var (
	_ Backend     = (*CachedBackend)(nil)
	_ Invalidator = (*CachedBackend)(nil)
)
