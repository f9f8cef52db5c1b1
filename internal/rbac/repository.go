package rbac

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists system role assignments.
type Repository interface {
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
	InsertAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, userID uuid.UUID, role Role) (bool, error)
}

// PGRepository implements Repository on the user_roles table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListAssignments returns the system roles of a user ordered by grant time.
func (r *PGRepository) ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, role, COALESCE(granted_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at
FROM user_roles WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var (
			a   Assignment
			raw string
		)
		if err := rows.Scan(&a.UserID, &raw, &a.GrantedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		role, ok := ParseRole(raw)
		if !ok {
			continue
		}
		a.Role = role
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertAssignment grants a role; granting an existing role is a no-op.
func (r *PGRepository) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role, granted_by, created_at)
VALUES ($1, $2, $3, NOW()) ON CONFLICT (user_id, role) DO NOTHING`, a.UserID, string(a.Role), a.GrantedBy)
	return err
}

// DeleteAssignment revokes a role and reports whether a row was removed.
func (r *PGRepository) DeleteAssignment(ctx context.Context, userID uuid.UUID, role Role) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepository)(nil)
