package clock

import (
	"context"
	"time"
)

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	// Now returns the current instant rendered in the source's zone.
	Now() time.Time
}

// TimeSource is the full time capability: read the current instant, report and
// change the reporting zone, and sleep.
type TimeSource interface {
	Clocker

	// Zone returns the location instants are reported in. It has no side effects.
	Zone() *time.Location

	// WithZone returns a time source reporting in loc. The receiver is not modified.
	WithZone(loc *time.Location) TimeSource

	// Instant returns the current point in time in UTC, at millisecond resolution
	// for controllable sources.
	Instant() time.Time

	// Millis returns Instant as milliseconds since the Unix epoch.
	Millis() int64

	// Sleep pauses for d, or simulates it. It returns an error matching
	// goerror.ErrInterrupted when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

func millisOf(ts TimeSource) int64 {
	return ts.Instant().UnixMilli()
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
