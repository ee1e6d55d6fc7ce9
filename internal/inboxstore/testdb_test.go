package inboxstore_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
)

// openTestDB sets up an in-memory sqlite database exercising the same
// code path as production, modulo the Dialect swap.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(1)

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

func newTestStore(t *testing.T, clk clock.Clock) *inboxstore.Store {
	t.Helper()
	db := openTestDB(t)
	log := logrus.New().WithField("test", true)
	return inboxstore.New(db, inboxstore.SQLite{}, clk, log)
}
