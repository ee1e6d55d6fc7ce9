// Package worker implements the Inbox Worker: claim one inbox row,
// hydrate its source message, run it through the Document Processor,
// and guarantee a terminal status write via the Status Writer.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/metrics"
	"github.com/svcops/intake-pipeline/internal/model"
)

// Processor is the narrow slice of processor.Processor the worker
// needs, so tests substitute a fake without standing up blob/PDF/OCR
// collaborators.
type Processor interface {
	Process(ctx context.Context, msg model.SourceMessage) error
}

// Worker claims and drains inbox rows strictly one at a time: a
// single worker processes at most one job at a time, and jobs are
// independent of each other.
type Worker struct {
	id                string
	store             *inboxstore.Store
	status            *inboxstore.StatusWriter
	proc              Processor
	log               *logrus.Entry
	staleLockMinutes  int
	interJobDelay     time.Duration
	criticalThreshold float64
}

func New(id string, store *inboxstore.Store, status *inboxstore.StatusWriter, proc Processor, log *logrus.Entry, staleLockMinutes int, interJobDelay time.Duration, criticalThreshold float64) *Worker {
	return &Worker{
		id:                id,
		store:             store,
		status:            status,
		proc:              proc,
		log:               log.WithField("worker_id", id),
		staleLockMinutes:  staleLockMinutes,
		interJobDelay:     interJobDelay,
		criticalThreshold: criticalThreshold,
	}
}

// RunBatch claims and processes up to batchSize rows this tick,
// shrinking to 1 first if the connection pool is past the critical
// utilization threshold, and pacing an
// inter-job delay between jobs so connections are yielded back to the
// pool for interactive requests between jobs within one tick (spec
// §5). It returns the number of rows claimed, which may be less than
// batchSize if the queue ran dry.
func (w *Worker) RunBatch(ctx context.Context, batchSize int) (int, error) {
	effective := w.effectiveBatchSize(batchSize)

	processed := 0
	for i := 0; i < effective; i++ {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		job, err := w.store.ClaimOne(ctx, w.id, w.staleLockMinutes)
		if err != nil {
			return processed, fmt.Errorf("claim one: %w", err)
		}
		if job == nil {
			break
		}

		w.runOne(ctx, job.Row)
		processed++

		if i < effective-1 && w.interJobDelay > 0 {
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(w.interJobDelay):
			}
		}
	}
	return processed, nil
}

// effectiveBatchSize shrinks the requested batch size to 1 when the
// shared connection pool is at or past the critical utilization
// threshold. database/sql's own Stats() is the only source for this —
// no pool-monitoring library appears anywhere in the retrieval pack,
// and pgx/v4/stdlib is driven entirely through database/sql here, so
// its pool stats are the stdlib ones.
func (w *Worker) effectiveBatchSize(requested int) int {
	if requested <= 0 {
		requested = 1
	}
	stats := w.store.DB().Stats()
	if stats.MaxOpenConnections <= 0 {
		return requested
	}
	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	if utilization >= w.criticalThreshold {
		metrics.BackpressureBatchShrunk.Inc()
		return 1
	}
	return requested
}

func (w *Worker) runOne(ctx context.Context, row model.InboxRow) {
	log := w.log.WithFields(logrus.Fields{
		"inbox_id":             row.InboxID,
		"message_id":           row.MessageID,
		"decision_tracking_id": row.DecisionTrackingID,
	})

	msg, err := w.store.GetSourceMessage(ctx, row.MessageID)
	if err != nil {
		log.WithError(err).Error("failed to hydrate source message for claimed row")
		w.failRow(ctx, row, log, err)
		return
	}

	if err := w.proc.Process(ctx, msg); err != nil {
		log.WithError(err).Warn("document processor returned an error")
		w.failRow(ctx, row, log, err)
		return
	}

	res := w.status.MarkDoneWithRetry(ctx, row.InboxID)
	if !res.Success {
		log.WithError(res.Err).Error("failed to mark row done after exhausting retries; reclaimer will sweep it")
	}
}

func (w *Worker) failRow(ctx context.Context, row model.InboxRow, log *logrus.Entry, cause error) {
	res := w.status.MarkFailedWithRetry(ctx, row.InboxID, cause.Error(), row.AttemptCount)
	if !res.Success {
		log.WithError(res.Err).Error("failed to mark row failed after exhausting retries; reclaimer will sweep it")
	}
}
