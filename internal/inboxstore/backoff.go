package inboxstore

import "time"

// MaxAttempts is the attempt_count threshold past which a FAILED row
// is promoted to DEAD instead of rescheduled.
const MaxAttempts = 5

// backoffLadder maps a pre-update attempt_count to the delay before
// the row becomes eligible again: {0→1m, 1→5m, 2→15m,
// 3→1h, 4→6h, ≥5→24h}.
var backoffLadder = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
}

// NextBackoff returns the delay to apply for a row whose attempt_count
// (before this failure) was preUpdateAttempts.
func NextBackoff(preUpdateAttempts int) time.Duration {
	if preUpdateAttempts < 0 {
		preUpdateAttempts = 0
	}
	if preUpdateAttempts >= len(backoffLadder) {
		return 24 * time.Hour
	}
	return backoffLadder[preUpdateAttempts]
}

// IsDead reports whether a row with this pre-update attempt_count has
// exhausted its retry budget and must transition to DEAD rather than
// FAILED.
func IsDead(preUpdateAttempts int) bool {
	return preUpdateAttempts >= MaxAttempts
}
