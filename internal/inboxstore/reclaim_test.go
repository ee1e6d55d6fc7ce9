package inboxstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/clock"
)

func TestResetStaleToNew_ResetsRowsUnderAttemptLimit(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMutable(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	row := claimOneRow(t, ctx, store, 1)
	require.Equal(t, 1, row.AttemptCount)

	// advance the clock past the stale-lock threshold.
	clk.Advance(20 * time.Minute)

	ids, err := store.ResetStaleToNew(ctx, 10, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{row.InboxID}, ids)

	var status string
	require.NoError(t, store.DB().QueryRow(`SELECT status FROM inbox_row WHERE inbox_id = ?`, row.InboxID).Scan(&status))
	require.Equal(t, "NEW", status)
}

func TestResetStaleToNew_IsNoOpOnSecondRun(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMutable(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	claimOneRow(t, ctx, store, 1)
	clk.Advance(20 * time.Minute)

	_, err := store.ResetStaleToNew(ctx, 10, 5, 10)
	require.NoError(t, err)

	ids, err := store.ResetStaleToNew(ctx, 10, 5, 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestClaimExhausted_OnlyClaimsRowsAtOrPastMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMutable(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	row := claimOneRow(t, ctx, store, 1)
	_, err := store.DB().Exec(`UPDATE inbox_row SET attempt_count = 5 WHERE inbox_id = ?`, row.InboxID)
	require.NoError(t, err)

	clk.Advance(20 * time.Minute)

	ids, err := store.ClaimExhausted(ctx, "reclaimer:abc", 10, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{row.InboxID}, ids)

	var lockedBy string
	require.NoError(t, store.DB().QueryRow(`SELECT locked_by FROM inbox_row WHERE inbox_id = ?`, row.InboxID).Scan(&lockedBy))
	require.Equal(t, "reclaimer:abc", lockedBy)
}

func TestRequeueDead_ResetsDeadRowToNew(t *testing.T) {
	ctx := context.Background()
	clk := clock.RealClock{}
	store := newTestStore(t, clk)

	row := claimOneRow(t, ctx, store, 1)
	_, err := store.DB().Exec(`UPDATE inbox_row SET status = 'DEAD', locked_by = NULL, locked_at = NULL WHERE inbox_id = ?`, row.InboxID)
	require.NoError(t, err)

	require.NoError(t, store.RequeueDead(ctx, row.InboxID))

	var status string
	var attempts int
	require.NoError(t, store.DB().QueryRow(`SELECT status, attempt_count FROM inbox_row WHERE inbox_id = ?`, row.InboxID).Scan(&status, &attempts))
	require.Equal(t, "NEW", status)
	require.Equal(t, 0, attempts)
}
