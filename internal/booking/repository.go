package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads bookings and forwards transitions to the remote system.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	Transition(ctx context.Context, req TransitionRequest) (Status, error)
}

// PGRepository implements Repository with PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get loads a booking joined with the host of its space.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var (
		b      Booking
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT b.id, b.space_id, s.host_id, b.user_id, b.status::text, b.starts_at, b.ends_at
FROM bookings b JOIN spaces s ON s.id = b.space_id
WHERE b.id = $1`, id).Scan(&b.ID, &b.SpaceID, &b.HostID, &b.UserID, &status, &b.StartsAt, &b.EndsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: get: %w", err)
	}
	b.Status = Status(status)
	return &b, nil
}

// Transition calls the transition_booking procedure, which validates the
// change again and returns the resulting status.
func (r *PGRepository) Transition(ctx context.Context, req TransitionRequest) (Status, error) {
	var target *string
	if req.TargetStatus != "" {
		s := string(req.TargetStatus)
		target = &s
	}
	var result string
	err := r.pool.QueryRow(ctx, `SELECT transition_booking($1, $2, $3, $4, $5)::text`,
		req.BookingID, string(req.Action), target, req.ActorID, req.Reason).Scan(&result)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "P0001" {
			return "", fmt.Errorf("%w: %s", ErrTransitionRejected, pgErr.Message)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("booking: transition: %w", err)
	}
	return Status(result), nil
}

var _ Repository = (*PGRepository)(nil)
