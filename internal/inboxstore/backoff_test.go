package inboxstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/inboxstore"
)

func TestNextBackoff_Ladder(t *testing.T) {
	cases := map[int]time.Duration{
		0: time.Minute,
		1: 5 * time.Minute,
		2: 15 * time.Minute,
		3: time.Hour,
		4: 6 * time.Hour,
		5: 24 * time.Hour,
		9: 24 * time.Hour,
	}
	for attempts, want := range cases {
		require.Equal(t, want, inboxstore.NextBackoff(attempts), "attempts=%d", attempts)
	}
}

func TestIsDead(t *testing.T) {
	require.False(t, inboxstore.IsDead(4))
	require.True(t, inboxstore.IsDead(5))
	require.True(t, inboxstore.IsDead(6))
}
