// Package idempotency records the outcome of keyed operations in Redis so a
// retried request replays the first result instead of running again.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
)

var (
	ErrAlreadyInProgress = goerror.NewBusiness("Operation with this idempotency key is already in progress", goerror.CodeConflict)
	ErrAlreadyFailed     = goerror.NewBusiness("Operation with this idempotency key already failed", goerror.CodeConflict)
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

func (s State) String() string {
	return string(s)
}

const (
	fieldState  = "state"
	fieldResult = "result"

	defaultPrefix       = "timestone:idempotency:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

// claimScript sets the in-progress state and its lock TTL in one step, so a
// claim never outlives its owner without an expiry.
var claimScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return 1
end
return 0
`)

type Idempotency interface {
	// Acquire claims key. StateNone means the caller owns the operation; for
	// StateCompleted the stored result is returned.
	Acquire(ctx context.Context, key string) (State, []byte, error)
	Complete(ctx context.Context, key string, result []byte) error
	Fail(ctx context.Context, key string) error
	// Release drops a claim so the operation can be retried under the same key.
	Release(ctx context.Context, key string) error
}

type Option func(*Tracker)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(t *Tracker) {
		if prefix != "" {
			t.prefix = prefix
		}
	}
}

// WithLockDuration bounds how long an in-progress claim survives a crashed owner.
func WithLockDuration(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.lockDuration = d
		}
	}
}

// WithStateTTL sets how long a finished outcome is kept.
func WithStateTTL(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.stateTTL = d
		}
	}
}

// Tracker stores one hash per key holding its state and, once completed, its
// result.
type Tracker struct {
	client       redis.Cmdable
	prefix       string
	lockDuration time.Duration
	stateTTL     time.Duration
}

func New(client redis.Cmdable, opts ...Option) *Tracker {
	t := &Tracker{
		client:       client,
		prefix:       defaultPrefix,
		lockDuration: defaultLockDuration,
		stateTTL:     defaultStateTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tracker) Acquire(ctx context.Context, key string) (State, []byte, error) {
	fk := t.prefix + key

	acquired, err := claimScript.Run(ctx, t.client, []string{fk},
		fieldState, StateInProgress.String(), t.lockDuration.Milliseconds()).Int()
	if err != nil {
		return "", nil, err
	}
	if acquired == 1 {
		return StateNone, nil, nil
	}

	values, err := t.client.HMGet(ctx, fk, fieldState, fieldResult).Result()
	if err != nil {
		return "", nil, err
	}

	state, _ := values[0].(string)
	switch State(state) {
	case StateInProgress, StateFailed:
		return State(state), nil, nil
	case StateCompleted:
		result, _ := values[1].(string)
		return StateCompleted, []byte(result), nil
	default:
		return "", nil, ErrInvalidState
	}
}

func (t *Tracker) Complete(ctx context.Context, key string, result []byte) error {
	return t.finish(ctx, key, StateCompleted, result)
}

func (t *Tracker) Fail(ctx context.Context, key string) error {
	return t.finish(ctx, key, StateFailed, nil)
}

func (t *Tracker) finish(ctx context.Context, key string, state State, result []byte) error {
	fk := t.prefix + key

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fk)
		if result != nil {
			pipe.HSet(ctx, fk, fieldState, state.String(), fieldResult, result)
		} else {
			pipe.HSet(ctx, fk, fieldState, state.String())
		}
		pipe.Expire(ctx, fk, t.stateTTL)
		return nil
	})
	return err
}

func (t *Tracker) Release(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.prefix+key).Err()
}
