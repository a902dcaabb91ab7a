// Package retry runs an operation a bounded number of times with a linear delay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/httpx"
)

// Config holds retry configuration.
type Config struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// BaseDelay is multiplied by the attempt number before the next try.
	BaseDelay time.Duration
}

func DefaultConfig() Config {
	return Config{Attempts: 3, BaseDelay: time.Second}
}

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (e *Permanent) Error() string { return e.Err.Error() }
func (e *Permanent) Unwrap() error { return e.Err }

// AlwaysRetry retries everything except cancellation and Permanent errors.
func AlwaysRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var p *Permanent
	return !errors.As(err, &p)
}

// ExhaustedError wraps the last error once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, the classifier rejects the error, the attempts run out,
// or ctx ends. The delay before attempt n+1 is n × BaseDelay.
func Do(ctx context.Context, cfg Config, classify Classifier, fn func(ctx context.Context, attempt int) error) error {
	if classify == nil {
		classify = AlwaysRetry
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classify(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if err := httpx.Sleep(ctx, time.Duration(attempt)*cfg.BaseDelay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}
