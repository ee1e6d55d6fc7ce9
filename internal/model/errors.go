package model

import "github.com/pkg/errors"

// Sentinel error kinds. Stage and worker code wraps
// these with fmt.Errorf("...: %w", ErrX) so callers can classify a
// failure with errors.Is without parsing strings.
var (
	// ErrInvalidPayload marks a parse/validation failure. It
	// is surfaced immediately with no local retry, letting the inbox
	// backoff ladder and DEAD promotion handle it.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrLostLock marks the "another worker claimed the row" condition:
	// a mutating update affected zero rows because the row's lock owner
	// or status moved out from under the current worker.
	ErrLostLock = errors.New("lost inbox row lock")

	// ErrResourceLost marks a referenced external resource (blob,
	// upstream row) having disappeared between stages.
	ErrResourceLost = errors.New("referenced resource no longer exists")

	// ErrFenced names an inbox row having transitioned away from the
	// expected state concurrently. No code in this module returns it:
	// the StatusWriter reports that condition as ErrLostLock.
	ErrFenced = errors.New("inbox row was fenced off by a concurrent worker")
)
