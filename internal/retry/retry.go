// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRetriesExhausted is matched by errors returned after every attempt failed
// with a retryable error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError carries the final cause once all attempts are spent.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// Default policy values.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = time.Minute
)

// Policy decides how often and how long to wait between attempts.
type Policy struct {
	// MaxAttempts counts the first call, so 5 means one call plus four retries.
	MaxAttempts int

	// InitialDelay is the wait before the first retry. Each later wait doubles.
	InitialDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration

	// IsRetryable classifies errors. Nil treats every error as retryable.
	IsRetryable func(error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns a policy with the package defaults.
func DefaultPolicy(isRetryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		IsRetryable:  isRetryable,
	}
}

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done.
//
// A non-retryable error is returned unchanged. Running out of attempts returns
// an *ExhaustedError. Cancellation returns the context's error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = maxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, wait)
		}
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("retry aborted after %d attempts: %w", attempts, ctx.Err())
	case !retryable(err):
		return err
	default:
		return &ExhaustedError{Attempts: attempts, Last: err}
	}
}
