package casestore_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/casestore"
	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	const schema = `
	CREATE TABLE "case" (
		case_id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		decision_tracking_id TEXT NOT NULL UNIQUE,
		channel_specific_id TEXT,
		received_date TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		submission_type TEXT,
		channel_type_id INTEGER,
		detailed_status TEXT NOT NULL,
		beneficiary_name TEXT,
		beneficiary_mbi TEXT,
		provider_name TEXT,
		provider_npi TEXT
	);
	CREATE TABLE document (
		document_id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id INTEGER NOT NULL UNIQUE,
		external_id TEXT NOT NULL,
		file_name TEXT,
		consolidated_blob_path TEXT,
		file_size_bytes INTEGER NOT NULL DEFAULT 0,
		processing_path TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		pages_metadata TEXT,
		ocr_metadata TEXT,
		extracted_fields TEXT,
		updated_extracted_fields TEXT,
		split_status TEXT NOT NULL,
		ocr_status TEXT NOT NULL,
		coversheet_page_number INTEGER,
		part_type TEXT NOT NULL,
		manual_review_required BOOLEAN NOT NULL DEFAULT 0
	);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T, clk clock.Clock) *casestore.Store {
	t.Helper()
	db := openTestDB(t)
	log := logrus.New().WithField("test", true)
	return casestore.New(db, inboxstore.SQLite{}, clk, log)
}
