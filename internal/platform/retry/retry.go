package retry

import (
	"context"
	"fmt"
	"time"
)

// Action tells Do how to treat a failed attempt.
type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, back off and try again
)

// Policy controls attempt count and backoff growth. Backoff doubles after
// every failed attempt, starting from InitialBackoff.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

type Classify func(err error) Action

// Do runs op until it succeeds, classify returns Stop, attempts run out,
// or ctx is cancelled.
func Do(ctx context.Context, p Policy, classify Classify, op func() error) error {
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if classify(err) == Stop {
			return &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
