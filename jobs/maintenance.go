package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cowork-market/cowork/internal/jobs"
)

const (
	defaultAuditRetention       = 365 * 24 * time.Hour
	defaultIdempotencyRetention = 7 * 24 * time.Hour
)

// AuditPruner deletes audit rows older than a retention window.
type AuditPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// IdempotencyCleaner deletes idempotency keys older than a retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// MaintenanceJob trims tables that grow with every booking transition.
type MaintenanceJob struct {
	Audit       AuditPruner
	Idempotency IdempotencyCleaner
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics

	// AuditRetention applies when the task payload leaves it unset.
	AuditRetention time.Duration
}

// NewMaintenanceJob wires dependencies for the prune handler.
func NewMaintenanceJob(audit AuditPruner, idem IdempotencyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *MaintenanceJob {
	return &MaintenanceJob{Audit: audit, Idempotency: idem, AuditRetention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskMaintenancePrune tasks.
func (j *MaintenanceJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("maintenance: handler not configured")
	}
	var payload MaintenancePrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("maintenance: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskMaintenancePrune)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	auditRetention := j.auditRetention(payload)
	idemRetention := defaultIdempotencyRetention
	if payload.IdempotencyRetentionDays > 0 {
		idemRetention = days(payload.IdempotencyRetentionDays)
	}

	if j.Audit != nil {
		removed, err := j.Audit.Prune(ctx, auditRetention)
		if err != nil {
			logger.Error("prune audit logs", slog.Any("error", err))
			return err
		}
		logger.Info("pruned audit logs", slog.Int64("rows", removed), slog.Duration("retention", auditRetention))
	}
	if j.Idempotency != nil {
		if err := j.Idempotency.Cleanup(ctx, idemRetention); err != nil {
			logger.Error("cleanup idempotency keys", slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (j *MaintenanceJob) auditRetention(payload MaintenancePrunePayload) time.Duration {
	if payload.AuditRetentionDays > 0 {
		return days(payload.AuditRetentionDays)
	}
	if j.AuditRetention > 0 {
		return j.AuditRetention
	}
	return defaultAuditRetention
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func (j *MaintenanceJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MaintenanceJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
