package inboxstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CountStuck counts PROCESSING rows whose lock is older than the
// stale threshold, for reclaimer observability.
func (s *Store) CountStuck(ctx context.Context, staleLockMinutes int) (int, error) {
	cutoff := s.clock.Now().Add(-time.Duration(staleLockMinutes) * time.Minute)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inbox_row WHERE status = 'PROCESSING' AND locked_at < `+s.dialect.Placeholder(1), cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stuck: %w", err)
	}
	return n, nil
}

// ResetStaleToNew atomically resets up to batchSize stuck PROCESSING
// rows under the attempt limit back to NEW, oldest-lock-first,
// skipping rows a concurrent transaction holds. It returns the
// inbox_ids reset.
func (s *Store) ResetStaleToNew(ctx context.Context, staleLockMinutes, maxAttempts, batchSize int) ([]int64, error) {
	cutoff := s.clock.Now().Add(-time.Duration(staleLockMinutes) * time.Minute)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reset stale begin tx: %w", err)
	}
	defer tx.Rollback()

	selectSQL := `
		SELECT inbox_id FROM inbox_row
		WHERE status = 'PROCESSING' AND locked_at < ` + s.dialect.Placeholder(1) + ` AND attempt_count < ` + s.dialect.Placeholder(2) + `
		ORDER BY locked_at ASC
		LIMIT ` + s.dialect.Placeholder(3)
	if s.dialect.SupportsSkipLocked() {
		selectSQL += ` FOR UPDATE SKIP LOCKED`
	}

	rows, err := tx.QueryContext(ctx, selectSQL, cutoff, maxAttempts, batchSize)
	if err != nil {
		return nil, fmt.Errorf("reset stale select: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reset stale scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE inbox_row SET status = 'NEW', locked_by = NULL, locked_at = NULL WHERE inbox_id = `+s.dialect.Placeholder(1), id); err != nil {
			return nil, fmt.Errorf("reset stale update %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reset stale commit: %w", err)
	}
	return ids, nil
}

// ClaimExhausted claims up to batchSize stuck rows whose attempt_count
// has already reached maxAttempts, locking each under
// 'reclaimer:<id>' so the caller can route them through
// mark_failed_with_retry uniformly rather than duplicating the
// backoff/DEAD-promotion rules here.
func (s *Store) ClaimExhausted(ctx context.Context, reclaimerID string, staleLockMinutes, maxAttempts, batchSize int) ([]int64, error) {
	cutoff := s.clock.Now().Add(-time.Duration(staleLockMinutes) * time.Minute)
	now := s.clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim exhausted begin tx: %w", err)
	}
	defer tx.Rollback()

	selectSQL := `
		SELECT inbox_id, attempt_count FROM inbox_row
		WHERE status = 'PROCESSING' AND locked_at < ` + s.dialect.Placeholder(1) + ` AND attempt_count >= ` + s.dialect.Placeholder(2) + `
		ORDER BY locked_at ASC
		LIMIT ` + s.dialect.Placeholder(3)
	if s.dialect.SupportsSkipLocked() {
		selectSQL += ` FOR UPDATE SKIP LOCKED`
	}

	rows, err := tx.QueryContext(ctx, selectSQL, cutoff, maxAttempts, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim exhausted select: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		var attempts int
		if err := rows.Scan(&id, &attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("claim exhausted scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE inbox_row SET locked_by = `+s.dialect.Placeholder(1)+`, locked_at = `+s.dialect.Placeholder(2)+` WHERE inbox_id = `+s.dialect.Placeholder(3),
			reclaimerID, now, id); err != nil {
			return nil, fmt.Errorf("claim exhausted lock %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim exhausted commit: %w", err)
	}
	return ids, nil
}

// RequeueDead is the administrative requeue operation (SPEC_FULL
// supplement): resets one DEAD row back to NEW with attempt_count
// reset to zero, for operator-triggered reprocessing after a fix
// upstream. It bypasses the normal state machine deliberately, so it
// is not exposed anywhere but an explicit operator tool.
func (s *Store) RequeueDead(ctx context.Context, inboxID int64) error {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE inbox_row SET status = 'NEW', attempt_count = 0, locked_by = NULL, locked_at = NULL, next_attempt_at = `+s.dialect.Placeholder(1)+`, last_error = NULL
		WHERE inbox_id = `+s.dialect.Placeholder(2)+` AND status = 'DEAD'`, now, inboxID)
	if err != nil {
		return fmt.Errorf("requeue dead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue dead rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
