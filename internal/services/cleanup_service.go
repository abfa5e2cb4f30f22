package services

import (
	"context"
	"fmt"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/metrics"
	"staybackend/internal/utils"
)

const (
	DefaultAbandonThreshold = 60 * time.Minute
	cleanupLockKey          = "cleanup:abandoned"
	cleanupLockTTL          = 5 * time.Minute
)

// CleanupService sweeps bookings that never got past (pending, pending).
type CleanupService struct {
	Bookings BookingStore
	Outbox   OutboxStore
	// Locker is optional and keeps replicas from sweeping at the same time.
	Locker  Claimer
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type SweepResult struct {
	DeletedCount int       `json:"deletedCount"`
	DeletedIDs   []int64   `json:"deletedIds"`
	Candidates   []int64   `json:"candidates,omitempty"`
	DryRun       bool      `json:"dryRun"`
	Cutoff       time.Time `json:"cutoff"`
	Skipped      bool      `json:"skipped,omitempty"`
}

func (s CleanupService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

// Sweep deletes abandoned bookings older than maxAge, or only lists them when
// dryRun is set. Both outcomes are audited as system activity.
func (s CleanupService) Sweep(ctx context.Context, maxAge time.Duration, dryRun bool) (SweepResult, error) {
	if maxAge <= 0 {
		maxAge = DefaultAbandonThreshold
	}
	now := s.now()
	res := SweepResult{DryRun: dryRun, Cutoff: now.Add(-maxAge), DeletedIDs: []int64{}}

	if s.Locker != nil && !dryRun {
		ok, err := s.Locker.Claim(ctx, cleanupLockKey, cleanupLockTTL)
		if err != nil {
			utils.LogError(utils.RequestID(ctx), "cleanup", "lock", err)
		} else if !ok {
			utils.LogEvent(utils.RequestID(ctx), "cleanup", "sweep", "another sweep is running, skipping")
			res.Skipped = true
			return res, nil
		} else {
			defer func() {
				if err := s.Locker.Release(context.WithoutCancel(ctx), cleanupLockKey); err != nil {
					utils.LogError(utils.RequestID(ctx), "cleanup", "unlock", err)
				}
			}()
		}
	}

	ids, err := s.Bookings.SweepAbandoned(ctx, res.Cutoff, dryRun)
	if err != nil {
		s.audit(ctx, now, "cleanup_abandoned_bookings_failed", map[string]any{
			"error":           err.Error(),
			"max_age_minutes": int(maxAge.Minutes()),
			"dry_run":         dryRun,
		})
		return res, domain.ExternalServiceError{Service: "database", Err: err}
	}

	if dryRun {
		res.Candidates = nonNil(ids)
	} else {
		res.DeletedIDs = nonNil(ids)
		res.DeletedCount = len(ids)
		s.Metrics.Swept(len(ids))
	}
	s.audit(ctx, now, "cleanup_abandoned_bookings", map[string]any{
		"deleted_count":   res.DeletedCount,
		"deleted_ids":     res.DeletedIDs,
		"candidates":      len(res.Candidates),
		"max_age_minutes": int(maxAge.Minutes()),
		"dry_run":         dryRun,
	})
	utils.LogEvent(utils.RequestID(ctx), "cleanup", "sweep",
		fmt.Sprintf("dry_run=%t deleted=%d candidates=%d cutoff=%s", dryRun, res.DeletedCount, len(res.Candidates), res.Cutoff.Format(time.RFC3339)))
	return res, nil
}

func (s CleanupService) audit(ctx context.Context, now time.Time, action string, meta map[string]any) {
	if s.Outbox == nil {
		return
	}
	ev := newBatch(now)
	ev.add(models.OutboxKindActivity, 0, models.ActivityPayload{
		ActorType:  domain.SystemActor().ActorType(),
		Action:     action,
		EntityType: "booking",
		Metadata:   meta,
	})
	events, err := ev.done()
	if err == nil {
		err = s.Outbox.EnqueueOutbox(ctx, events...)
	}
	if err != nil {
		utils.LogError(utils.RequestID(ctx), "cleanup", "audit", err)
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s CleanupService) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, maxAge, false); err != nil && ctx.Err() == nil {
				utils.LogError("", "cleanup", "scheduled_sweep", err)
			}
		}
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
