package clock

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// Listener is notified after every change of a MutableTime's instant.
//
// Listeners are registered and removed by equality, so implementations must be
// comparable; pointer types are the usual choice. Use ListenerFunc to register
// a plain function.
type Listener interface {
	// OnTimeChanged receives the new instant in Unix milliseconds.
	OnTimeChanged(millis int64) error
}

// FuncListener adapts a function to the Listener interface. Its identity is the
// pointer returned by ListenerFunc.
type FuncListener struct {
	fn func(millis int64) error
}

// ListenerFunc wraps fn as a Listener that can later be removed with the
// returned pointer.
func ListenerFunc(fn func(millis int64) error) *FuncListener {
	return &FuncListener{fn: fn}
}

// OnTimeChanged calls the wrapped function.
func (f *FuncListener) OnTimeChanged(millis int64) error {
	return f.fn(millis)
}

type mutableOptions struct {
	millis    int64
	hasMillis bool
	loc       *time.Location
}

// MutableOption configures NewMutable.
type MutableOption func(*mutableOptions)

// WithMillis sets the initial instant in Unix milliseconds.
func WithMillis(millis int64) MutableOption {
	return func(o *mutableOptions) {
		o.millis = millis
		o.hasMillis = true
	}
}

// WithStart sets the initial instant, truncated to millisecond resolution.
func WithStart(t time.Time) MutableOption {
	return WithMillis(t.UnixMilli())
}

// WithLocation sets the reporting zone. A nil loc is ignored.
func WithLocation(loc *time.Location) MutableOption {
	return func(o *mutableOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// MutableTime is a controllable TimeSource for tests. Its instant is an
// explicit millisecond counter that only changes through Advance or Sleep.
//
// MutableTime is safe for concurrent use by multiple goroutines.
type MutableTime struct {
	current *atomic.Int64
	loc     *time.Location

	// mu serializes listener registration; notification reads the snapshot
	// without locking.
	mu        sync.Mutex
	listeners *atomic.Pointer[[]Listener]
}

// NewMutable returns a MutableTime. Without options it starts at the current
// wall-clock instant in the local zone.
func NewMutable(opts ...MutableOption) *MutableTime {
	o := mutableOptions{loc: time.Local}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if !o.hasMillis {
		o.millis = time.Now().UnixMilli()
	}

	return &MutableTime{
		current:   atomic.NewInt64(o.millis),
		loc:       o.loc,
		listeners: atomic.NewPointer(&[]Listener{}),
	}
}

// Now returns the current instant in the configured zone.
func (m *MutableTime) Now() time.Time {
	return m.Instant().In(m.loc)
}

// Zone returns the configured zone.
func (m *MutableTime) Zone() *time.Location {
	return m.loc
}

// WithZone returns an independent MutableTime in loc, starting at this clock's
// current instant. The two clocks do not share state afterwards and the fork
// has no listeners. A nil loc keeps the current zone.
func (m *MutableTime) WithZone(loc *time.Location) TimeSource {
	if loc == nil {
		loc = m.loc
	}
	return NewMutable(WithMillis(m.current.Load()), WithLocation(loc))
}

// Instant returns the stored instant in UTC.
func (m *MutableTime) Instant() time.Time {
	return time.UnixMilli(m.current.Load()).UTC()
}

// Millis returns the stored instant in Unix milliseconds.
func (m *MutableTime) Millis() int64 {
	return millisOf(m)
}

// Sleep never blocks. When ctx is already done it returns an interrupted error
// without moving the clock; otherwise it advances the clock by d.
func (m *MutableTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return goerror.NewInterrupted(err)
	}
	m.Advance(d)
	return nil
}

// Advance moves the instant by d, truncated to whole milliseconds, and returns
// the new instant. Negative durations rewind the clock; callers should avoid
// relying on that.
//
// Listeners are notified synchronously on the calling goroutine after the new
// instant is stored. Their order is unspecified. A listener that fails or
// panics is logged and skipped; it never affects the instant, the other
// listeners, or the caller.
func (m *MutableTime) Advance(d time.Duration) time.Time {
	now := m.current.Add(d.Milliseconds())
	m.notify(now)
	return time.UnixMilli(now).UTC()
}

// AddListener registers l. Registering the same listener again has no effect.
// A listener whose dynamic type is not comparable, such as a struct value
// holding a slice or map, cannot be told apart from others; it is logged and
// ignored.
func (m *MutableTime) AddListener(l Listener) {
	if !comparableListener(l) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.listeners.Load()
	if lo.Contains(current, l) {
		return
	}

	next := make([]Listener, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, l)
	m.listeners.Store(&next)
}

// RemoveListener unregisters l. Removing an unknown or non-comparable
// listener is a no-op.
func (m *MutableTime) RemoveListener(l Listener) {
	if !comparableListener(l) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.listeners.Load()
	if !lo.Contains(current, l) {
		return
	}

	next := lo.Without(current, l)
	m.listeners.Store(&next)
}

func comparableListener(l Listener) bool {
	if l == nil {
		return false
	}
	if t := reflect.TypeOf(l); !t.Comparable() {
		slog.Warn("clock listener ignored: type is not comparable", "type", t.String())
		return false
	}
	return true
}

// Listeners returns the number of registered listeners.
func (m *MutableTime) Listeners() int {
	return len(*m.listeners.Load())
}

func (m *MutableTime) notify(millis int64) {
	for _, l := range *m.listeners.Load() {
		m.deliver(l, millis)
	}
}

// deliver isolates a single listener: its errors and panics are observer
// faults and are only logged.
func (m *MutableTime) deliver(l Listener, millis int64) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.Error("panic in clock listener", "millis", millis, "panic", rvr, "stack", stacktrace.Current())
		}
	}()

	if err := l.OnTimeChanged(millis); err != nil {
		slog.Warn("clock listener failed", "millis", millis, "error", err)
	}
}
