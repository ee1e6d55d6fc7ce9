package inboxstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/metrics"
	"github.com/svcops/intake-pipeline/internal/model"
)

const (
	statusWriteMaxAttempts = 10
	maxErrorLen            = 1000
)

// StatusWriterResult is the outcome of a status-write-with-retry call.
type StatusWriterResult struct {
	Success  bool
	Attempts int
	Err      error
}

// StatusWriter guarantees an in-flight inbox row is not abandoned in
// PROCESSING: each attempt is a standalone statement with no
// transaction carried over from an earlier attempt, run on whatever
// connection the database/sql pool hands out (an idle one may be
// reused), and it retries with exponential backoff on failure.
type StatusWriter struct {
	db    *sql.DB
	dlct  Dialect
	clock clock.Clock
	log   *logrus.Entry
}

func NewStatusWriter(db *sql.DB, dialect Dialect, clk clock.Clock, log *logrus.Entry) *StatusWriter {
	return &StatusWriter{db: db, dlct: dialect, clock: clk, log: log}
}

// MarkDoneWithRetry transitions inboxID to DONE, making up to 10
// attempts with 2^(attempt-1) second backoff between tries.
func (w *StatusWriter) MarkDoneWithRetry(ctx context.Context, inboxID int64) StatusWriterResult {
	return w.retryEnvelope(ctx, func(ctx context.Context) error {
		res, err := w.db.ExecContext(ctx,
			`UPDATE inbox_row SET status = 'DONE', locked_by = NULL, locked_at = NULL WHERE inbox_id = `+w.dlct.Placeholder(1),
			inboxID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrLostLock
		}
		metrics.RowsMarkedDone.Inc()
		return nil
	})
}

// MarkFailedWithRetry transitions inboxID to FAILED (rescheduled per
// the backoff ladder) or DEAD (attempt_count has exhausted
// MaxAttempts), truncating errMsg to 1000 characters.
// preUpdateAttemptCount is the row's attempt_count as already
// incremented by ClaimOne.
func (w *StatusWriter) MarkFailedWithRetry(ctx context.Context, inboxID int64, errMsg string, preUpdateAttemptCount int) StatusWriterResult {
	truncated := errMsg
	if len(truncated) > maxErrorLen {
		truncated = truncated[:maxErrorLen]
	}

	return w.retryEnvelope(ctx, func(ctx context.Context) error {
		now := w.clock.Now()
		if IsDead(preUpdateAttemptCount) {
			res, err := w.db.ExecContext(ctx,
				`UPDATE inbox_row SET status = 'DEAD', locked_by = NULL, locked_at = NULL, last_error = `+w.dlct.Placeholder(1)+`
				 WHERE inbox_id = `+w.dlct.Placeholder(2), truncated, inboxID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return model.ErrLostLock
			}
			metrics.RowsMarkedDead.Inc()
			return nil
		}

		nextAttemptAt := now.Add(NextBackoff(preUpdateAttemptCount))
		res, err := w.db.ExecContext(ctx,
			`UPDATE inbox_row SET status = 'FAILED', locked_by = NULL, locked_at = NULL, last_error = `+w.dlct.Placeholder(1)+`, next_attempt_at = `+w.dlct.Placeholder(2)+`
			 WHERE inbox_id = `+w.dlct.Placeholder(3), truncated, nextAttemptAt, inboxID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrLostLock
		}
		metrics.RowsMarkedFailed.Inc()
		return nil
	})
}

// retryEnvelope implements the shared 10-attempt, one-statement-per-attempt,
// exponential-backoff retry loop used by both mark_done_with_retry and
// mark_failed_with_retry. On total failure it logs at logrus's Error
// level (no separate critical severity is emitted) and returns the
// last error; the Reclaimer is the backstop for the row.
func (w *StatusWriter) retryEnvelope(ctx context.Context, attempt func(context.Context) error) StatusWriterResult {
	var lastErr error
	for i := 1; i <= statusWriteMaxAttempts; i++ {
		lastErr = attempt(ctx)
		if lastErr == nil {
			return StatusWriterResult{Success: true, Attempts: i}
		}
		metrics.StatusWriteRetries.Inc()
		if i < statusWriteMaxAttempts {
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				lastErr = fmt.Errorf("status write retry interrupted: %w", ctx.Err())
				i = statusWriteMaxAttempts
			case <-time.After(delay):
			}
		}
	}
	metrics.StatusWriteExhausted.Inc()
	w.log.WithError(lastErr).Error("status write retry budget exhausted; row left in PROCESSING for the reclaimer")
	return StatusWriterResult{Success: false, Attempts: statusWriteMaxAttempts, Err: lastErr}
}
