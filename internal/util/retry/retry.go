package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retry loop by attempt count and total elapsed time.
type Policy struct {
	// MaxAttempts is the total number of times the operation is invoked,
	// including the first attempt.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the per-attempt delay after backoff growth.
	MaxDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// Deadline caps the total time spent across all attempts and delays.
	// Zero means no overall deadline beyond MaxAttempts.
	Deadline time.Duration

	// Sleep is called to wait between attempts. Defaults to a real
	// context-aware sleep; tests replace it with a fast clock.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is the startup policy used while waiting for the server's
// listening socket to open.
func Default() Policy {
	return Policy{
		MaxAttempts:  60,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   1.5,
		Deadline:     60 * time.Second,
	}
}

// Run invokes operation until it succeeds, returns a fatal error, or the
// policy is exhausted. Context cancellation is respected between attempts.
func (p Policy) Run(ctx context.Context, operation func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("not retrying: %w", err)
		}
		if attempt == p.MaxAttempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return &ExhaustedError{Attempts: attempt, Last: lastErr, Interrupt: err}
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Last: lastErr}
}

// ExhaustedError reports a retry budget spent without success, either by
// attempt count or by the overall deadline interrupting the backoff sleep.
type ExhaustedError struct {
	Attempts  int
	Last      error
	Interrupt error
}

func (e *ExhaustedError) Error() string {
	if e.Interrupt != nil {
		return fmt.Sprintf("gave up after %d attempts: %v (last error: %v)", e.Attempts, e.Interrupt, e.Last)
	}
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	errs := []error{e.Last}
	if e.Interrupt != nil {
		errs = append(errs, e.Interrupt)
	}
	return errs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// FatalError wraps an error to mark it as non-retryable.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as non-retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
