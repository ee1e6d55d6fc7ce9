package inboxstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/model"
)

func TestGetWatermark_SeedsEpoch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	w, err := store.GetWatermark(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Epoch().LastMessageID, w.LastMessageID)

	// second call should see the seeded row, not re-seed.
	w2, err := store.GetWatermark(ctx)
	require.NoError(t, err)
	require.Equal(t, w.LastMessageID, w2.LastMessageID)
}

func TestUpdateWatermark_TakesElementwiseMax(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	_, err := store.GetWatermark(ctx)
	require.NoError(t, err)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateWatermark(ctx, model.Watermark{LastCreatedAt: t1, LastMessageID: 5}))

	// a lexicographically smaller candidate must not move the watermark backwards.
	require.NoError(t, store.UpdateWatermark(ctx, model.Watermark{LastCreatedAt: t1.Add(-time.Hour), LastMessageID: 99}))

	w, err := store.GetWatermark(ctx)
	require.NoError(t, err)
	require.True(t, w.LastCreatedAt.Equal(t1))
	require.Equal(t, int64(5), w.LastMessageID)
}

func TestInsertNew_IsIdempotentOnMessageID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	msg := model.SourceMessage{
		MessageID:          42,
		DecisionTrackingID: "d1",
		Payload:            json.RawMessage(`{}`),
		CreatedAt:          time.Now().UTC(),
	}

	_, inserted, err := store.InsertNew(ctx, msg)
	require.NoError(t, err)
	require.True(t, inserted)

	_, inserted2, err := store.InsertNew(ctx, msg)
	require.NoError(t, err)
	require.False(t, inserted2)
}

func TestClaimOne_ReturnsNilWhenNothingEligible(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	job, err := store.ClaimOne(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestClaimOne_ClaimsExactlyOneEligibleRow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMutable(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	msg := model.SourceMessage{
		MessageID:          7,
		DecisionTrackingID: "d7",
		Payload:            json.RawMessage(`{}`),
		CreatedAt:          clk.Now(),
	}
	_, inserted, err := store.InsertNew(ctx, msg)
	require.NoError(t, err)
	require.True(t, inserted)

	job, err := store.ClaimOne(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, model.StatusProcessing, job.Row.Status)
	require.Equal(t, 1, job.Row.AttemptCount)
	require.True(t, job.Row.Locked())

	// the same row must not be claimable again while PROCESSING.
	second, err := store.ClaimOne(ctx, "worker-2", 10)
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestPollNew_OnlyReturnsRowsNewerThanWatermark(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertSourceRow(t, store, 1, base)
	insertSourceRow(t, store, 2, base.Add(time.Hour))

	rows, err := store.PollNew(ctx, model.Watermark{LastCreatedAt: base, LastMessageID: 1}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].MessageID)
}

func TestGetSourceMessage_ReturnsPayload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertSourceRow(t, store, 9, base)

	msg, err := store.GetSourceMessage(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, int64(9), msg.MessageID)
	require.Equal(t, "d", msg.DecisionTrackingID)
	require.JSONEq(t, `{}`, string(msg.Payload))
}

func TestGetSourceMessage_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, clock.RealClock{})

	_, err := store.GetSourceMessage(ctx, 404)
	require.Error(t, err)
}

func insertSourceRow(t *testing.T, store *inboxstore.Store, id int64, createdAt time.Time) {
	t.Helper()
	_, err := store.DB().Exec(`
		INSERT INTO source_message (message_id, decision_tracking_id, payload, created_at, is_deleted)
		VALUES (?, ?, ?, ?, 0)`, id, "d", `{}`, createdAt)
	require.NoError(t, err)
}
