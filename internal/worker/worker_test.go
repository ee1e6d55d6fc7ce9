package worker_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/model"
	"github.com/svcops/intake-pipeline/internal/worker"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	const schema = `
	CREATE TABLE source_message (
		message_id INTEGER PRIMARY KEY,
		decision_tracking_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		channel_type_id INTEGER,
		message_type_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE TABLE inbox_row (
		inbox_id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL UNIQUE,
		decision_tracking_id TEXT NOT NULL,
		message_type INTEGER NOT NULL,
		source_created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		locked_at TIMESTAMP,
		next_attempt_at TIMESTAMP NOT NULL,
		last_error TEXT,
		channel_type_id INTEGER,
		message_type_id INTEGER
	);
	CREATE TABLE watermark (
		id INTEGER PRIMARY KEY,
		last_created_at TIMESTAMP NOT NULL,
		last_message_id INTEGER NOT NULL
	);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

type fakeProcessor struct {
	err   error
	calls int
}

func (f *fakeProcessor) Process(ctx context.Context, msg model.SourceMessage) error {
	f.calls++
	return f.err
}

func insertInboxRow(t *testing.T, store *inboxstore.Store, messageID int64, createdAt time.Time) {
	t.Helper()
	_, err := store.DB().Exec(`INSERT INTO source_message (message_id, decision_tracking_id, payload, created_at, is_deleted) VALUES (?, ?, ?, ?, 0)`,
		messageID, "d", `{}`, createdAt)
	require.NoError(t, err)
	msg := model.SourceMessage{MessageID: messageID, DecisionTrackingID: "d", Payload: json.RawMessage(`{}`), CreatedAt: createdAt}
	_, inserted, err := store.InsertNew(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, inserted)
}

func newHarness(t *testing.T, proc worker.Processor) (*worker.Worker, *inboxstore.Store) {
	t.Helper()
	db := openTestDB(t)
	log := logrus.New().WithField("test", true)
	store := inboxstore.New(db, inboxstore.SQLite{}, clock.RealClock{}, log)
	sw := inboxstore.NewStatusWriter(db, inboxstore.SQLite{}, clock.RealClock{}, log)
	w := worker.New("worker-1", store, sw, proc, log, 10, 0, 0.95)
	return w, store
}

func TestRunBatch_ClaimsAndMarksDoneOnSuccess(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	w, store := newHarness(t, proc)

	insertInboxRow(t, store, 1, time.Now().UTC())

	processed, err := w.RunBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, proc.calls)

	var status string
	require.NoError(t, store.DB().QueryRow(`SELECT status FROM inbox_row WHERE message_id = 1`).Scan(&status))
	require.Equal(t, "DONE", status)
}

func TestRunBatch_MarksFailedOnProcessorError(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{err: errors.New("boom")}
	w, store := newHarness(t, proc)

	insertInboxRow(t, store, 2, time.Now().UTC())

	processed, err := w.RunBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var status, lastError string
	require.NoError(t, store.DB().QueryRow(`SELECT status, last_error FROM inbox_row WHERE message_id = 2`).Scan(&status, &lastError))
	require.Equal(t, "FAILED", status)
	require.Equal(t, "boom", lastError)
}

func TestRunBatch_StopsWhenQueueEmpty(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	w, _ := newHarness(t, proc)

	processed, err := w.RunBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 0, processed)
	require.Equal(t, 0, proc.calls)
}

func TestRunBatch_ShrinksBatchUnderPoolPressure(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}

	db := openTestDB(t)
	db.SetMaxOpenConns(2)
	log := logrus.New().WithField("test", true)
	store := inboxstore.New(db, inboxstore.SQLite{}, clock.RealClock{}, log)
	sw := inboxstore.NewStatusWriter(db, inboxstore.SQLite{}, clock.RealClock{}, log)
	// critical threshold 0.4: one held connection out of a pool of two
	// (50% utilization) must trip backpressure down to a batch of 1.
	w := worker.New("worker-1", store, sw, proc, log, 10, 0, 0.4)

	insertInboxRow(t, store, 3, time.Now().UTC())
	insertInboxRow(t, store, 4, time.Now().UTC())
	insertInboxRow(t, store, 5, time.Now().UTC())

	// Each :memory: connection is its own database, so hold a second,
	// fresh connection and hand the schema-carrying one back to the pool
	// for the worker's own queries.
	schemaConn, err := store.DB().Conn(ctx)
	require.NoError(t, err)
	held, err := store.DB().Conn(ctx)
	require.NoError(t, err)
	defer held.Close()
	require.NoError(t, schemaConn.Close())

	processed, err := w.RunBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed, "pool utilization 1/2 should trip the 0.4 critical threshold")
}
