// Package clock provides an injectable time source.
//
// Production code should depend on the TimeSource interface (or the smaller
// Clocker when only Now is needed) instead of calling time.Now or time.Sleep
// directly. System is the real, stateless implementation and the only clock
// meant to be shared process-wide. MutableTime is the controllable
// implementation for tests: its instant only moves when Advance or Sleep is
// called, and every move is reported to the registered listeners.
//
// # Wiring Pattern
//
// Accept the time source in the constructor:
//
//	type Poller struct {
//	    time clock.TimeSource
//	}
//
// In production:
//
//	p := &Poller{time: clock.System}
//
// In tests:
//
//	mt := clock.NewMutable(clock.WithMillis(1000))
//	p := &Poller{time: mt}
//	_ = mt.Sleep(ctx, 500*time.Millisecond) // instant is now 1500, no real wait
//
// Interruption is modelled with context cancellation: Sleep returns an error
// matching goerror.ErrInterrupted when its context is done.
package clock
