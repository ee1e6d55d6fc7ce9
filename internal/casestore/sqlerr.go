package casestore

import (
	"errors"

	"github.com/jackc/pgconn"
	"github.com/mattn/go-sqlite3"
)

// postgresUniqueViolation is the SQLSTATE Postgres raises for a unique
// index conflict.
const postgresUniqueViolation = "23505"

// isUniqueViolation recognizes a unique-index conflict across both
// backing engines this core runs against, so the Case upsert's
// "insert, and on conflict re-select" protocol works identically in
// production (pgx) and in tests (sqlite).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
