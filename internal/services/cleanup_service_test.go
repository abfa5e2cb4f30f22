package services

import (
	"context"
	"testing"
	"time"

	"staybackend/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDeletesOnlyAbandonedBookings(t *testing.T) {
	f := newFixture(t)
	old := f.seed(models.BookingPending, models.PaymentPending, "2025-10-01", "2025-10-04")
	old.CreatedAt = f.now.Add(-61 * time.Minute)
	f.store.PutBooking(old)
	fresh := f.seed(models.BookingPending, models.PaymentPending, "2025-10-05", "2025-10-07")
	fresh.CreatedAt = f.now.Add(-59 * time.Minute)
	f.store.PutBooking(fresh)
	confirmed := f.seed(models.BookingConfirmed, models.PaymentPending, "2025-10-08", "2025-10-09")
	confirmed.CreatedAt = f.now.Add(-72 * time.Hour)
	f.store.PutBooking(confirmed)
	processing := f.seed(models.BookingPending, models.PaymentProcessing, "2025-10-10", "2025-10-11")
	processing.CreatedAt = f.now.Add(-72 * time.Hour)
	f.store.PutBooking(processing)

	svc := CleanupService{Bookings: f.store, Outbox: f.store, Locker: f.claimer, Now: func() time.Time { return f.now }}

	dry, err := svc.Sweep(f.ctx, 60*time.Minute, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ID}, dry.Candidates)
	assert.Zero(t, dry.DeletedCount)
	assert.Contains(t, f.store.Bookings, old.ID)

	res, err := svc.Sweep(f.ctx, 60*time.Minute, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, []int64{old.ID}, res.DeletedIDs)
	assert.NotContains(t, f.store.Bookings, old.ID)
	assert.Contains(t, f.store.Bookings, fresh.ID)
	assert.Contains(t, f.store.Bookings, confirmed.ID)
	assert.Contains(t, f.store.Bookings, processing.ID)

	again, err := svc.Sweep(f.ctx, 60*time.Minute, false)
	require.NoError(t, err)
	assert.Zero(t, again.DeletedCount)
	assert.Empty(t, again.DeletedIDs)

	f.drain()
	logs, err := f.store.ListActivity(f.ctx, models.ActivityFilter{Action: "cleanup_abandoned_bookings"})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	for _, l := range logs {
		assert.Equal(t, "system", l.ActorType)
		assert.Zero(t, l.UserID)
	}
}

func TestSweepSkipsWhileAnotherReplicaHoldsTheLock(t *testing.T) {
	f := newFixture(t)
	old := f.seed(models.BookingPending, models.PaymentPending, "2025-10-01", "2025-10-04")
	old.CreatedAt = f.now.Add(-2 * time.Hour)
	f.store.PutBooking(old)

	ok, err := f.claimer.Claim(context.Background(), cleanupLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	svc := CleanupService{Bookings: f.store, Locker: f.claimer, Now: func() time.Time { return f.now }}
	res, err := svc.Sweep(f.ctx, time.Hour, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, f.store.Bookings, old.ID)
}
