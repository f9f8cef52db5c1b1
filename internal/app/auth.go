package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

// SessionBackends bundles the backend used by the session middleware with
// the invalidator the worker uses to evict stale entries.
type SessionBackends struct {
	Backend     session.Backend
	Invalidator session.Invalidator
}

// NewSessionBackends selects the auth backend from cfg. Backend mode verifies
// access tokens and reads profiles through the Redis cache; fake mode serves
// the single configured fixture account.
func NewSessionBackends(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) (SessionBackends, error) {
	if cfg == nil {
		return SessionBackends{}, errors.New("app: config required")
	}
	if cfg.UsesFakeAuth() {
		if cfg.IsProduction() {
			return SessionBackends{}, errors.New("app: fake auth is not allowed in production")
		}
		fake, err := NewFakeSessionBackend(cfg)
		if err != nil {
			return SessionBackends{}, err
		}
		logger.Warn("fake auth backend enabled", slog.String("email", cfg.AuthFakeEmail), slog.Any("roles", cfg.AuthFakeRoles))
		return SessionBackends{Backend: fake, Invalidator: fake}, nil
	}

	verifier, err := session.NewTokenVerifier(session.TokenConfig{
		Secret:   []byte(cfg.AuthJWTSecret),
		Issuer:   cfg.AuthJWTIssuer,
		Audience: cfg.AuthJWTAudience,
	})
	if err != nil {
		return SessionBackends{}, err
	}
	if pool == nil {
		return SessionBackends{}, errors.New("app: database pool required for backend auth")
	}
	var backend session.Backend = session.NewPGBackend(verifier, pool)
	if redisClient == nil || cfg.SessionCacheTTL <= 0 {
		return SessionBackends{Backend: backend}, nil
	}
	cached := session.NewCachedBackend(backend, redisClient, cfg.SessionCacheTTL, logger)
	return SessionBackends{Backend: cached, Invalidator: cached}, nil
}

// NewFakeSessionBackend registers the configured fixture account. Roles are
// taken verbatim from AUTH_FAKE_ROLES.
func NewFakeSessionBackend(cfg *Config) (*session.FakeBackend, error) {
	id, err := uuid.Parse(cfg.AuthFakeUserID)
	if err != nil {
		return nil, fmt.Errorf("app: fake user id: %w", err)
	}
	roles := rbac.ParseRoles(cfg.AuthFakeRoles)
	if len(roles) == 0 {
		return nil, errors.New("app: fake auth needs at least one valid role")
	}
	fake := session.NewFakeBackend()
	fake.Register(cfg.AuthFakeToken, session.FakeAccount{
		Identity: session.Identity{ID: id, Email: cfg.AuthFakeEmail},
		Profile:  &session.Profile{ID: id, FirstName: "Dev", LastName: "User"},
		Roles:    roles,
	})
	return fake, nil
}
