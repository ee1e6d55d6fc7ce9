package inboxstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/model"
)

func claimOneRow(t *testing.T, ctx context.Context, store *inboxstore.Store, messageID int64) model.InboxRow {
	t.Helper()
	msg := model.SourceMessage{
		MessageID:          messageID,
		DecisionTrackingID: "d",
		Payload:            json.RawMessage(`{}`),
		CreatedAt:          time.Now().UTC(),
	}
	_, inserted, err := store.InsertNew(ctx, msg)
	require.NoError(t, err)
	require.True(t, inserted)

	job, err := store.ClaimOne(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job.Row
}

func TestMarkDoneWithRetry_Succeeds(t *testing.T) {
	ctx := context.Background()
	clk := clock.RealClock{}
	store := newTestStore(t, clk)
	row := claimOneRow(t, ctx, store, 1)

	sw := inboxstore.NewStatusWriter(store.DB(), inboxstore.SQLite{}, clk, logrus.New().WithField("t", true))
	result := sw.MarkDoneWithRetry(ctx, row.InboxID)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Attempts)
}

func TestMarkFailedWithRetry_SchedulesBackoffForLowAttempts(t *testing.T) {
	ctx := context.Background()
	clk := clock.RealClock{}
	store := newTestStore(t, clk)
	row := claimOneRow(t, ctx, store, 2)
	require.Equal(t, 1, row.AttemptCount)

	sw := inboxstore.NewStatusWriter(store.DB(), inboxstore.SQLite{}, clk, logrus.New().WithField("t", true))
	result := sw.MarkFailedWithRetry(ctx, row.InboxID, "boom", row.AttemptCount)
	require.True(t, result.Success)

	var status string
	require.NoError(t, store.DB().QueryRow(`SELECT status FROM inbox_row WHERE inbox_id = ?`, row.InboxID).Scan(&status))
	require.Equal(t, "FAILED", status)
}

func TestMarkFailedWithRetry_PromotesToDeadPastMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clk := clock.RealClock{}
	store := newTestStore(t, clk)
	row := claimOneRow(t, ctx, store, 3)

	sw := inboxstore.NewStatusWriter(store.DB(), inboxstore.SQLite{}, clk, logrus.New().WithField("t", true))
	result := sw.MarkFailedWithRetry(ctx, row.InboxID, "boom", inboxstore.MaxAttempts)
	require.True(t, result.Success)

	var status string
	require.NoError(t, store.DB().QueryRow(`SELECT status FROM inbox_row WHERE inbox_id = ?`, row.InboxID).Scan(&status))
	require.Equal(t, "DEAD", status)
}
