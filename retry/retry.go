// Package retry executes an operation with bounded retries, exponential
// backoff and jitter. It is used only around the network asset source; the
// durable store is never retried here.
//
// The policy itself does not classify failures. Callers decide what is worth
// retrying: wrap an error with Permanent to stop immediately (the network
// source does this for not-found and unauthorized responses by default).
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultMinDelay    = time.Second
	DefaultFactor      = 2.0
	DefaultMaxDelay    = time.Minute
)

// Policy bounds retries: delay before attempt n is
// min(MaxDelay, MinDelay * Factor^n) plus jitter. The zero value uses the
// defaults above.
type Policy struct {
	MaxAttempts int           // total attempts including the first; 0 => 3
	MinDelay    time.Duration // 0 => 1s
	Factor      float64       // 0 => 2
	MaxDelay    time.Duration // 0 => 60s
	// DisableJitter makes delays deterministic. Leave jitter on in
	// production to avoid thundering herds after an upstream recovers.
	DisableJitter bool
}

// TransientError tags an operation that kept failing until the attempt
// budget was exhausted. It wraps the last failure.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that must not be retried. Construct with
// Permanent.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget runs out, or ctx is done. Exhaustion returns a *TransientError
// wrapping the last failure; a permanent failure is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	if p.MinDelay > 0 {
		b.InitialInterval = p.MinDelay
	} else {
		b.InitialInterval = DefaultMinDelay
	}
	if p.Factor > 0 {
		b.Multiplier = p.Factor
	} else {
		b.Multiplier = DefaultFactor
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	} else {
		b.MaxInterval = DefaultMaxDelay
	}
	b.MaxElapsedTime = 0 // attempts bound, not wall clock
	if p.DisableJitter {
		b.RandomizationFactor = 0
	}
	b.Reset()

	var (
		attempts  int
		permanent bool
	)
	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			permanent = true
			return backoff.Permanent(pe.Err)
		}
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx))
	if err == nil {
		return nil
	}
	if permanent || ctx.Err() != nil {
		return err
	}
	return &TransientError{Attempts: attempts, Err: err}
}
