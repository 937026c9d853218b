package clock

import (
	"context"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

// System is the process-wide real time source in the local zone. It holds no
// mutable state and is safe to share.
var System TimeSource = New()

// SystemTime is the production TimeSource backed by the operating system clock.
type SystemTime struct {
	loc *time.Location
}

// New returns a SystemTime that reads the current system time in the local zone.
func New() *SystemTime {
	return NewSystem(time.Local)
}

// NewSystem returns a SystemTime reporting in loc. A nil loc means time.Local.
func NewSystem(loc *time.Location) *SystemTime {
	return &SystemTime{loc: locationOrLocal(loc)}
}

// Now returns the current system time in the configured zone.
func (s *SystemTime) Now() time.Time {
	return time.Now().In(s.loc)
}

// Zone returns the configured zone.
func (s *SystemTime) Zone() *time.Location {
	return s.loc
}

// WithZone returns a new SystemTime reporting in loc.
func (s *SystemTime) WithZone(loc *time.Location) TimeSource {
	return NewSystem(loc)
}

// Instant samples the operating system clock.
func (s *SystemTime) Instant() time.Time {
	return time.Now().UTC()
}

// Millis returns the current Unix time in milliseconds.
func (s *SystemTime) Millis() int64 {
	return millisOf(s)
}

// Sleep blocks for d. It returns early with an interrupted error when ctx is
// done, including when ctx is already done on entry.
func (s *SystemTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return goerror.NewInterrupted(err)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return goerror.NewInterrupted(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Equal reports whether other is a SystemTime reporting in the same zone.
func (s *SystemTime) Equal(other TimeSource) bool {
	o, ok := other.(*SystemTime)
	if !ok || o == nil {
		return false
	}
	return s.loc.String() == o.loc.String()
}
