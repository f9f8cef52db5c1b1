package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cowork-market/cowork/internal/jobs"
	"github.com/cowork-market/cowork/internal/session"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SessionInvalidateJob evicts cached profile and role entries after a role
// assignment changes.
type SessionInvalidateJob struct {
	Cache   session.Invalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionInvalidateJob wires dependencies for the invalidation handler.
func NewSessionInvalidateJob(cache session.Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionInvalidateJob {
	return &SessionInvalidateJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSessionInvalidate tasks.
func (j *SessionInvalidateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("session invalidate: handler not configured")
	}
	var payload SessionInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("session invalidate: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskSessionInvalidate)
	defer func() {
		err = tracker.End(err)
	}()

	if err := j.Cache.Invalidate(ctx, payload.UserID); err != nil {
		j.logger().Error("session invalidate", slog.String("user_id", payload.UserID.String()), slog.Any("error", err))
		return err
	}
	j.metrics().AddEvictions(1)
	j.logger().Debug("session cache evicted", slog.String("user_id", payload.UserID.String()))
	return nil
}

func (j *SessionInvalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionInvalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
