// Package backoff implements retry delays that sleep through a clock.TimeSource.
//
// Exponential satisfies github.com/sethvargo/go-retry's Backoff interface, so it
// composes with that package's middleware (WithMaxRetries, WithCappedDuration,
// WithJitter). Do is the retry loop; unlike retry.Do it waits with the injected
// time source, which lets tests drive a whole retry sequence with a
// clock.MutableTime and no real delay.
package backoff
