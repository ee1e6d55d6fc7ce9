// Package inboxstore is the transactional CRUD layer over the source,
// inbox, and watermark tables. Every operation opens its work against a
// *sql.DB so each call gets a fresh connection from the pool rather
// than pinning a long-lived session, scoping each write to its own
// transaction.
package inboxstore

import "strconv"

// Dialect abstracts the two backing engines this core runs against:
// Postgres in production, sqlite in tests. The two differ in
// placeholder syntax and in whether SELECT ... FOR UPDATE SKIP LOCKED
// is available; everything else uses plain standard SQL.
type Dialect interface {
	// Placeholder returns the positional parameter marker for the i'th
	// (1-indexed) bound argument, e.g. "$1" for Postgres or "?" for sqlite.
	Placeholder(i int) string

	// SupportsSkipLocked reports whether FOR UPDATE SKIP LOCKED is
	// available. sqlite has no row-level locking story equivalent to
	// Postgres's, so claim_one falls back to a plain transaction there;
	// it is still safe for the single-process sqlite test suite.
	SupportsSkipLocked() bool

	// Name identifies the dialect for logging/diagnostics.
	Name() string
}

// Postgres is the production dialect, driven through jackc/pgx's
// database/sql driver (imported for its side effect in cmd/poller).
type Postgres struct{}

func (Postgres) Placeholder(i int) string { return placeholderDollar(i) }
func (Postgres) SupportsSkipLocked() bool { return true }
func (Postgres) Name() string             { return "postgres" }

// SQLite is the test dialect, driven through mattn/go-sqlite3, kept
// alongside the Postgres dialect so the same Store code exercises both
// a production-shaped path and a single-writer test path.
type SQLite struct{}

func (SQLite) Placeholder(int) string  { return "?" }
func (SQLite) SupportsSkipLocked() bool { return false }
func (SQLite) Name() string             { return "sqlite" }

func placeholderDollar(i int) string {
	return "$" + strconv.Itoa(i)
}
