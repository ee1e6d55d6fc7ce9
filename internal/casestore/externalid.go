// Package casestore implements the Case/Document upsert concurrency
// protocol: lookup by decision_tracking_id, generate a
// candidate external_id, insert, and on a unique-index conflict, roll
// back and re-select the row the other worker created.
package casestore

import (
	"fmt"
	"math/rand"
	"time"
)

// maxExternalIDRetries bounds the widening loop to 100 attempts.
const maxExternalIDRetries = 100

// minSuffixDigits/maxSuffixDigits bound the progressive widening of the
// numeric suffix on local lookup collisions, starting at 7 suffix
// digits and widening to 8/9/10 as attempts accumulate.
const (
	minSuffixDigits = 7
	maxSuffixDigits = 10
)

// idSource abstracts the entropy source behind external_id generation
// so tests can make it deterministic without a package-level global.
type idSource struct {
	rng *rand.Rand
}

func newIDSource(seedTime time.Time) *idSource {
	return &idSource{rng: rand.New(rand.NewSource(seedTime.UnixNano()))}
}

// candidate produces one "SVC-<year>-<suffix>" candidate for the
// given 0-indexed retry attempt, widening the suffix's digit count
// every 25 attempts (three widenings across 100 retries cover
// 7/8/9/10 digits evenly).
func (s *idSource) candidate(year int, attempt int) string {
	digits := minSuffixDigits + attempt/25
	if digits > maxSuffixDigits {
		digits = maxSuffixDigits
	}
	max := pow10(digits)
	suffix := s.rng.Int63n(max)
	return fmt.Sprintf("SVC-%04d-%0*d", year, digits, suffix)
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
