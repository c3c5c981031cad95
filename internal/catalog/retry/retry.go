// Package retry holds the backoff policy shared by every catalog adapter.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Class tells the policy how to treat a failed attempt.
type Class int

const (
	// Fatal errors are returned immediately.
	Fatal Class = iota
	// RateLimited errors back off exponentially.
	RateLimited
	// Transient errors (timeouts, aborted connections) back off linearly.
	Transient
)

func (c Class) String() string {
	switch c {
	case RateLimited:
		return "rate_limited"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// Classifier maps an error to a retry class.
type Classifier func(err error) Class

const (
	DefaultRetries   = 2
	DefaultBaseDelay = 500 * time.Millisecond
)

// Policy is the retry/backoff policy injected into adapters.
type Policy struct {
	Retries   int
	BaseDelay time.Duration
	Classify  Classifier
	Logger    zerolog.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy builds a policy. Negative retries are treated as zero.
func NewPolicy(retries int, baseDelay time.Duration, classify Classifier, logger zerolog.Logger) Policy {
	if retries < 0 {
		retries = 0
	}
	return Policy{
		Retries:   retries,
		BaseDelay: baseDelay,
		Classify:  classify,
		Logger:    logger,
	}
}

// Backoff returns the wait before the next attempt. attempt is zero based.
func (p Policy) Backoff(class Class, attempt int) time.Duration {
	switch class {
	case RateLimited:
		return p.BaseDelay * time.Duration(1<<attempt)
	case Transient:
		return p.BaseDelay * time.Duration(attempt+1)
	default:
		return 0
	}
}

// Do runs fn until it succeeds, returns a fatal error, or the retry budget
// is spent. Each call of fn starts from scratch.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				p.Logger.Debug().Str("operation", operation).Int("attempt", attempt+1).Msg("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		class := Fatal
		if p.Classify != nil {
			class = p.Classify(err)
		}
		if class == Fatal {
			return err
		}
		if attempt == p.Retries {
			break
		}

		delay := p.Backoff(class, attempt)
		p.Logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("class", class.String()).
			Int("attempt", attempt+1).
			Int("maxAttempts", p.Retries+1).
			Dur("nextRetryIn", delay).
			Msg("upstream call failed, will retry")

		if err := p.wait(ctx, delay); err != nil {
			return err
		}
	}

	p.Logger.Warn().Err(lastErr).Str("operation", operation).Int("attempts", p.Retries+1).Msg("operation failed after all retries")
	return lastErr
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
