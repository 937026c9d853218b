package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

func TestSystemTimeInstant(t *testing.T) {
	st := NewSystem(time.UTC)

	before := time.Now()
	got := st.Instant()
	after := time.Now()

	if got.Before(before.Add(-time.Millisecond)) || got.After(after.Add(time.Millisecond)) {
		t.Fatalf("Instant() = %v, want between %v and %v", got, before, after)
	}
	if got.Location() != time.UTC {
		t.Fatalf("Instant() location = %v, want UTC", got.Location())
	}
}

func TestSystemTimeMillisDerivesFromInstant(t *testing.T) {
	st := New()

	before := time.Now().UnixMilli()
	got := st.Millis()
	after := time.Now().UnixMilli()

	if got < before || got > after {
		t.Fatalf("Millis() = %d, want between %d and %d", got, before, after)
	}
}

func TestSystemTimeWithZone(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	original := NewSystem(time.UTC)
	zoned := original.WithZone(jakarta)

	if zoned.Zone() != jakarta {
		t.Fatalf("WithZone().Zone() = %v, want %v", zoned.Zone(), jakarta)
	}
	if original.Zone() != time.UTC {
		t.Fatalf("original zone changed to %v", original.Zone())
	}
	if zoned.Now().Location() != jakarta {
		t.Fatalf("Now() location = %v, want %v", zoned.Now().Location(), jakarta)
	}
}

func TestSystemTimeNilZoneIsLocal(t *testing.T) {
	if got := NewSystem(nil).Zone(); got != time.Local {
		t.Fatalf("NewSystem(nil).Zone() = %v, want Local", got)
	}
}

func TestSystemTimeEqual(t *testing.T) {
	a := NewSystem(time.UTC)
	b := NewSystem(time.UTC)
	c := NewSystem(time.FixedZone("X", 3600))

	if !a.Equal(b) {
		t.Fatal("same zone should be equal")
	}
	if a.Equal(c) {
		t.Fatal("different zone should not be equal")
	}
	if a.Equal(NewMutable()) {
		t.Fatal("different implementation should not be equal")
	}
}

func TestSystemTimeSleep(t *testing.T) {
	st := New()

	start := time.Now()
	if err := st.Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Sleep() returned after %v, want >= 20ms", elapsed)
	}
}

func TestSystemTimeSleepInterrupted(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := st.Sleep(ctx, time.Minute)

	if !errors.Is(err, goerror.ErrInterrupted) {
		t.Fatalf("Sleep() error = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want wrapped context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Sleep() was not interrupted promptly: %v", elapsed)
	}
}

func TestSystemTimeSleepAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New().Sleep(ctx, 0); !errors.Is(err, goerror.ErrInterrupted) {
		t.Fatalf("Sleep() error = %v, want ErrInterrupted", err)
	}
}

func TestSystemTimeSleepNonPositive(t *testing.T) {
	if err := New().Sleep(context.Background(), -time.Second); err != nil {
		t.Fatalf("Sleep(-1s) error = %v", err)
	}
}
