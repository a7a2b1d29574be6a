package retry

import (
	"context"
	"errors"
	"time"
)

// Defaults: three retries after the first attempt, doubling from one second.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second

	// MaxDelay caps a single backoff wait.
	MaxDelay = 5 * time.Minute
)

// Policy is a bounded exponential backoff. Every failure is retried unless
// Retryable says otherwise; there is no jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable, when set, stops retrying on errors it rejects.
	Retryable func(error) bool
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the client's default policy.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait before retry number i (0-based): BaseDelay * 2^i,
// capped at MaxDelay.
func (p Policy) Delay(i int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if p.BaseDelay >= MaxDelay {
		return MaxDelay
	}
	d := p.BaseDelay
	for ; i > 0; i-- {
		if d >= MaxDelay/2 {
			return MaxDelay
		}
		d <<= 1
	}
	return d
}

// Do runs op until it succeeds or the attempt budget is spent, returning the
// last error unchanged on exhaustion. Cancelling ctx during a wait returns
// the last error joined with ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var (
		result T
		err    error
	)
	for i := 0; i < attempts; i++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if i == attempts-1 {
			break
		}
		if p.Retryable != nil && !p.Retryable(err) {
			break
		}
		if serr := sleep(ctx, p.Delay(i)); serr != nil {
			return result, errors.Join(err, serr)
		}
	}
	return result, err
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
