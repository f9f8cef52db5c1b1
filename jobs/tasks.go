package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionInvalidate evicts cached session data for one user.
	TaskSessionInvalidate = "session:invalidate"
	// TaskMaintenancePrune removes expired audit rows and idempotency keys.
	TaskMaintenancePrune = "maintenance:prune"
)

// SessionInvalidatePayload identifies the user whose cache entries are stale.
type SessionInvalidatePayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewSessionInvalidateTask constructs an Asynq task.
func NewSessionInvalidateTask(userID uuid.UUID) (*asynq.Task, error) {
	if userID == uuid.Nil {
		return nil, errors.New("jobs: user id required")
	}
	data, err := json.Marshal(SessionInvalidatePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionInvalidate, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// MaintenancePrunePayload configures retention windows. Zero values fall back
// to the job defaults.
type MaintenancePrunePayload struct {
	AuditRetentionDays       int `json:"audit_retention_days,omitempty"`
	IdempotencyRetentionDays int `json:"idempotency_retention_days,omitempty"`
}

// NewMaintenancePruneTask constructs an Asynq task.
func NewMaintenancePruneTask(payload MaintenancePrunePayload) (*asynq.Task, error) {
	if payload.AuditRetentionDays < 0 || payload.IdempotencyRetentionDays < 0 {
		return nil, errors.New("jobs: retention must not be negative")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenancePrune, data), nil
}
