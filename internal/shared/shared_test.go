package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuditLoggerValidatesBeforeWriting(t *testing.T) {
	logger := NewAuditLogger(nil)
	err := logger.Record(context.Background(), AuditLog{Action: "booking.cancel", Entity: "bookings"})
	assert.ErrorContains(t, err, "entity_id")

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{}))
	_, err = nilLogger.Prune(context.Background(), time.Hour)
	assert.Error(t, err)
}

func TestIdempotencyStoreValidatesArguments(t *testing.T) {
	store := NewIdempotencyStore(nil)
	ctx := context.Background()
	assert.Error(t, store.CheckAndInsert(ctx, "", "bookings"))
	assert.Error(t, store.CheckAndInsert(ctx, "key", ""))
	assert.Error(t, store.Delete(ctx, ""))

	var nilStore *IdempotencyStore
	assert.Error(t, nilStore.CheckAndInsert(ctx, "key", "bookings"))
	assert.NoError(t, nilStore.Delete(ctx, "key"))
	assert.NoError(t, nilStore.Cleanup(ctx, time.Hour))
}
