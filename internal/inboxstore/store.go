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

// Store wraps a *sql.DB with the transactional operations over the
// inbox_row table. Every exported method opens its own transaction (or
// runs a single statement) rather than holding a session across calls:
// a fresh session per call, rolled back on error.
type Store struct {
	db      *sql.DB
	dialect Dialect
	clock   clock.Clock
	log     *logrus.Entry
}

func New(db *sql.DB, dialect Dialect, clk clock.Clock, log *logrus.Entry) *Store {
	return &Store{db: db, dialect: dialect, clock: clk, log: log}
}

// DB exposes the underlying pool for callers that need to participate
// in the same connection (migrations, test fixtures).
func (s *Store) DB() *sql.DB { return s.db }

// GetWatermark returns the single watermark row, inserting an epoch
// row if none exists yet. If the insert fails (e.g. lack of
// permission), the epoch default is returned without error — the
// watermark will be created on the first UpdateWatermark call.
func (s *Store) GetWatermark(ctx context.Context) (model.Watermark, error) {
	var w model.Watermark
	row := s.db.QueryRowContext(ctx, `SELECT last_created_at, last_message_id FROM watermark WHERE id = 1`)
	switch err := row.Scan(&w.LastCreatedAt, &w.LastMessageID); err {
	case nil:
		return w, nil
	case sql.ErrNoRows:
		epoch := model.Epoch()
		_, insertErr := s.db.ExecContext(ctx,
			`INSERT INTO watermark (id, last_created_at, last_message_id) VALUES (1, `+s.dialect.Placeholder(1)+`, `+s.dialect.Placeholder(2)+`)`,
			epoch.LastCreatedAt, epoch.LastMessageID)
		if insertErr != nil {
			s.log.WithError(insertErr).Warn("failed to seed epoch watermark row, returning epoch default")
			return epoch, nil
		}
		return epoch, nil
	default:
		return model.Watermark{}, fmt.Errorf("get watermark: %w", err)
	}
}

// UpdateWatermark upserts the single watermark row, taking the
// element-wise lexicographic max of the stored tuple and the argument.
func (s *Store) UpdateWatermark(ctx context.Context, candidate model.Watermark) error {
	current, err := s.GetWatermark(ctx)
	if err != nil {
		return err
	}
	next := current.Max(candidate)
	_, err = s.db.ExecContext(ctx, `
		UPDATE watermark SET last_created_at = `+s.dialect.Placeholder(1)+`, last_message_id = `+s.dialect.Placeholder(2)+`
		WHERE id = 1`, next.LastCreatedAt, next.LastMessageID)
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	return nil
}

// PollNew returns the next batch_size undeleted source rows strictly
// newer than the stored watermark, ordered ascending by (created_at,
// message_id). The payload-shape filter is applied by the caller (the
// Poller Service's watermark drain) via model.ParsePayload, since
// rejecting unparseable rows here would hide them from the
// RejectedShapeRows counter.
func (s *Store) PollNew(ctx context.Context, w model.Watermark, batchSize int) ([]model.SourceMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, decision_tracking_id, payload, channel_type_id, message_type_id, created_at, is_deleted
		FROM source_message
		WHERE is_deleted = false
		  AND (message_type_id IS NULL OR message_type_id IN (1, 2, 3))
		  AND (created_at > `+s.dialect.Placeholder(1)+`
		       OR (created_at = `+s.dialect.Placeholder(2)+` AND message_id > `+s.dialect.Placeholder(3)+`))
		ORDER BY created_at ASC, message_id ASC
		LIMIT `+s.dialect.Placeholder(4),
		w.LastCreatedAt, w.LastCreatedAt, w.LastMessageID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("poll new: %w", err)
	}
	defer rows.Close()

	var out []model.SourceMessage
	for rows.Next() {
		var m model.SourceMessage
		var channelTypeID, messageTypeID sql.NullInt64
		if err := rows.Scan(&m.MessageID, &m.DecisionTrackingID, &m.Payload, &channelTypeID, &messageTypeID, &m.CreatedAt, &m.IsDeleted); err != nil {
			return nil, fmt.Errorf("poll new scan: %w", err)
		}
		if channelTypeID.Valid {
			v := int(channelTypeID.Int64)
			m.ChannelTypeID = &v
		}
		if messageTypeID.Valid {
			v := int(messageTypeID.Int64)
			m.MessageTypeID = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetSourceMessage looks up the immutable source row backing an inbox
// row, so the Inbox Worker can rehydrate a claimed job (which only
// carries the InboxRow, not the payload) into the model.SourceMessage
// the Document Processor expects.
func (s *Store) GetSourceMessage(ctx context.Context, messageID int64) (model.SourceMessage, error) {
	var m model.SourceMessage
	var channelTypeID, messageTypeID sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, decision_tracking_id, payload, channel_type_id, message_type_id, created_at, is_deleted
		FROM source_message WHERE message_id = `+s.dialect.Placeholder(1), messageID)
	if err := row.Scan(&m.MessageID, &m.DecisionTrackingID, &m.Payload, &channelTypeID, &messageTypeID, &m.CreatedAt, &m.IsDeleted); err != nil {
		if err == sql.ErrNoRows {
			return model.SourceMessage{}, fmt.Errorf("get source message %d: %w", messageID, sql.ErrNoRows)
		}
		return model.SourceMessage{}, fmt.Errorf("get source message %d: %w", messageID, err)
	}
	if channelTypeID.Valid {
		v := int(channelTypeID.Int64)
		m.ChannelTypeID = &v
	}
	if messageTypeID.Valid {
		v := int(messageTypeID.Int64)
		m.MessageTypeID = &v
	}
	return m, nil
}

// InsertNew inserts an InboxRow for a source message. A conflict on
// message_id is swallowed and (0, false) is returned, making repeated
// polls of the same source row a no-op.
func (s *Store) InsertNew(ctx context.Context, msg model.SourceMessage) (int64, bool, error) {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_row (message_id, decision_tracking_id, message_type, source_created_at, status, attempt_count, next_attempt_at, channel_type_id, message_type_id)
		VALUES (`+s.dialect.Placeholder(1)+`, `+s.dialect.Placeholder(2)+`, `+s.dialect.Placeholder(3)+`, `+s.dialect.Placeholder(4)+`, `+s.dialect.Placeholder(5)+`, 0, `+s.dialect.Placeholder(6)+`, `+s.dialect.Placeholder(7)+`, `+s.dialect.Placeholder(8)+`)
		ON CONFLICT (message_id) DO NOTHING`,
		msg.MessageID, msg.DecisionTrackingID, int(msg.MessageType()), msg.CreatedAt, string(model.StatusNew), now, msg.ChannelTypeID, msg.MessageTypeID)
	if err != nil {
		return 0, false, fmt.Errorf("insert new inbox row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert new rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	inboxID, err := res.LastInsertId()
	if err != nil {
		// Postgres drivers (pgx/stdlib) don't implement LastInsertId;
		// callers on that path look the row up by message_id instead.
		return 0, true, nil
	}
	return inboxID, true, nil
}

// ClaimOne atomically selects and locks one eligible row:
// status IN (NEW, FAILED), next_attempt_at <= now, and either unlocked
// or locked past the stale threshold. Ordered by (source_created_at,
// message_id) ascending. On Postgres this is a SELECT ... FOR UPDATE
// SKIP LOCKED followed by a separate UPDATE, both inside one explicit
// transaction (two statements, not a single CTE update), so
// concurrent workers never claim the same row; sqlite (no SKIP LOCKED)
// relies on its single-writer transaction semantics for the same
// guarantee in tests.
func (s *Store) ClaimOne(ctx context.Context, workerID string, staleLockMinutes int) (*model.ClaimedJob, error) {
	now := s.clock.Now()
	staleCutoff := now.Add(-time.Duration(staleLockMinutes) * time.Minute)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim one begin tx: %w", err)
	}
	defer tx.Rollback()

	selectSQL := `
		SELECT inbox_id, message_id, decision_tracking_id, message_type, source_created_at, status,
		       attempt_count, locked_by, locked_at, next_attempt_at, last_error, channel_type_id, message_type_id
		FROM inbox_row
		WHERE status IN ('NEW', 'FAILED')
		  AND next_attempt_at <= ` + s.dialect.Placeholder(1) + `
		  AND (locked_at IS NULL OR locked_at < ` + s.dialect.Placeholder(2) + `)
		ORDER BY source_created_at ASC, message_id ASC
		LIMIT 1`
	if s.dialect.SupportsSkipLocked() {
		selectSQL += ` FOR UPDATE SKIP LOCKED`
	}

	var row model.InboxRow
	var messageType int
	var channelTypeID, messageTypeID sql.NullInt64
	var lockedBy sql.NullString
	var lockedAt sql.NullTime
	var lastError sql.NullString
	err = tx.QueryRowContext(ctx, selectSQL, now, staleCutoff).Scan(
		&row.InboxID, &row.MessageID, &row.DecisionTrackingID, &messageType, &row.SourceCreatedAt, &row.Status,
		&row.AttemptCount, &lockedBy, &lockedAt, &row.NextAttemptAt, &lastError, &channelTypeID, &messageTypeID)
	if err == sql.ErrNoRows {
		metrics.ClaimsEmpty.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim one select: %w", err)
	}
	row.MessageType = model.MessageType(messageType)
	if channelTypeID.Valid {
		v := int(channelTypeID.Int64)
		row.ChannelTypeID = &v
	}
	if messageTypeID.Valid {
		v := int(messageTypeID.Int64)
		row.MessageTypeID = &v
	}
	if lockedBy.Valid {
		row.LockedBy = &lockedBy.String
	}
	if lockedAt.Valid {
		row.LockedAt = &lockedAt.Time
	}
	if lastError.Valid {
		row.LastError = &lastError.String
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inbox_row SET status = 'PROCESSING', locked_by = `+s.dialect.Placeholder(1)+`, locked_at = `+s.dialect.Placeholder(2)+`, attempt_count = attempt_count + 1
		WHERE inbox_id = `+s.dialect.Placeholder(3), workerID, now, row.InboxID)
	if err != nil {
		return nil, fmt.Errorf("claim one update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim one commit: %w", err)
	}

	row.Status = model.StatusProcessing
	row.LockedBy = &workerID
	row.LockedAt = &now
	row.AttemptCount++
	metrics.ClaimsSucceeded.Inc()
	return &model.ClaimedJob{Row: row}, nil
}
