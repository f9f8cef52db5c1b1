package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cowork-market/cowork/internal/rbac"
)

// Backend supplies identity, profile and role data for a session.
type Backend interface {
	ResolveIdentity(ctx context.Context, token string) (Identity, error)
	FetchProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	FetchRoles(ctx context.Context, id uuid.UUID) ([]rbac.Role, error)
}

// Invalidator is implemented by backends holding per-identity caches.
type Invalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// PGBackend verifies access tokens locally and reads profile and role rows
// from PostgreSQL.
type PGBackend struct {
	verifier *TokenVerifier
	pool     *pgxpool.Pool
}

// NewPGBackend constructs a PGBackend.
func NewPGBackend(verifier *TokenVerifier, pool *pgxpool.Pool) *PGBackend {
	return &PGBackend{verifier: verifier, pool: pool}
}

// ResolveIdentity verifies the token and returns its subject.
func (b *PGBackend) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	return b.verifier.Verify(token)
}

// FetchProfile loads the profile row for id.
func (b *PGBackend) FetchProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p := Profile{ID: id}
	err := b.pool.QueryRow(ctx, `SELECT COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(avatar_url, '')
FROM profiles WHERE id = $1`, id).Scan(&p.FirstName, &p.LastName, &p.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("session: query profile: %w", err)
	}
	return &p, nil
}

// FetchRoles merges the business role from the profile with granted system
// roles.
func (b *PGBackend) FetchRoles(ctx context.Context, id uuid.UUID) ([]rbac.Role, error) {
	rows, err := b.pool.Query(ctx, `SELECT user_type::text FROM profiles WHERE id = $1 AND user_type IS NOT NULL
UNION
SELECT role::text FROM user_roles WHERE user_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("session: query roles: %w", err)
	}
	defer rows.Close()
	var raw []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("session: scan role: %w", err)
		}
		raw = append(raw, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: query roles: %w", err)
	}
	return rbac.ParseRoles(raw), nil
}

var _ Backend = (*PGBackend)(nil)
