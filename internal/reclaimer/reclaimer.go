// Package reclaimer implements the Reclaimer: the
// periodic sweep that detects inbox rows stuck in PROCESSING past a
// stale-lock threshold and either resets them to NEW or, once their
// attempt budget is exhausted, routes them through the Status
// Writer's uniform backoff/DEAD-promotion rules.
package reclaimer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/metrics"
)

// Reclaimer holds one identity for the lifetime of the process so
// every row it locks while claiming exhausted attempts is
// attributable to the same 'reclaimer:<uuid>' owner across sweeps.
type Reclaimer struct {
	id     string
	store  *inboxstore.Store
	status *inboxstore.StatusWriter
	log    *logrus.Entry
}

func New(store *inboxstore.Store, status *inboxstore.StatusWriter, log *logrus.Entry) *Reclaimer {
	id := "reclaimer:" + uuid.NewString()
	return &Reclaimer{id: id, store: store, status: status, log: log.WithField("reclaimer_id", id)}
}

// Sweep runs one reclaim pass: count stuck rows
// for observability, reset under-limit stuck rows straight back to
// NEW in one round trip, then separately claim exhausted rows and let
// the Status Writer apply the same backoff/DEAD rules a normal
// processing failure would.
func (r *Reclaimer) Sweep(ctx context.Context, staleLockMinutes, maxAttempts, batchSize int) error {
	stuck, err := r.store.CountStuck(ctx, staleLockMinutes)
	if err != nil {
		return fmt.Errorf("reclaimer count stuck: %w", err)
	}
	metrics.StuckLocks.Set(float64(stuck))

	reset, err := r.store.ResetStaleToNew(ctx, staleLockMinutes, maxAttempts, batchSize)
	if err != nil {
		return fmt.Errorf("reclaimer reset stale: %w", err)
	}
	if len(reset) > 0 {
		metrics.Reclaimed.Add(float64(len(reset)))
		r.log.WithField("count", len(reset)).Info("reset stale rows back to NEW")
	}

	exhausted, err := r.store.ClaimExhausted(ctx, r.id, staleLockMinutes, maxAttempts, batchSize)
	if err != nil {
		return fmt.Errorf("reclaimer claim exhausted: %w", err)
	}
	for _, inboxID := range exhausted {
		// ClaimExhausted only returns ids at or past maxAttempts, so
		// IsDead(maxAttempts) is guaranteed true regardless of the row's
		// exact attempt_count; the backoff ladder is never consulted on
		// this path.
		res := r.status.MarkFailedWithRetry(ctx, inboxID, "reclaimer: attempts exhausted while stuck in PROCESSING", maxAttempts)
		if !res.Success {
			r.log.WithError(res.Err).WithField("inbox_id", inboxID).Error("failed to mark exhausted row after retries")
		}
	}
	return nil
}
