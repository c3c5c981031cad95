package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errLimited   = errors.New("limited")
	errTransient = errors.New("timeout")
	errFatal     = errors.New("boom")
)

func classify(err error) Class {
	switch {
	case errors.Is(err, errLimited):
		return RateLimited
	case errors.Is(err, errTransient):
		return Transient
	default:
		return Fatal
	}
}

func recordingPolicy(retries int) (*Policy, *[]time.Duration) {
	var waits []time.Duration
	p := NewPolicy(retries, 500*time.Millisecond, classify, zerolog.Nop())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return &p, &waits
}

func TestPolicy_Backoff(t *testing.T) {
	p := NewPolicy(2, 500*time.Millisecond, classify, zerolog.Nop())

	assert.Equal(t, 500*time.Millisecond, p.Backoff(RateLimited, 0))
	assert.Equal(t, time.Second, p.Backoff(RateLimited, 1))
	assert.Equal(t, 2*time.Second, p.Backoff(RateLimited, 2))

	assert.Equal(t, 500*time.Millisecond, p.Backoff(Transient, 0))
	assert.Equal(t, time.Second, p.Backoff(Transient, 1))
	assert.Equal(t, 1500*time.Millisecond, p.Backoff(Transient, 2))

	assert.Zero(t, p.Backoff(Fatal, 1))
}

func TestPolicy_Do_RetriesRateLimitedExponentially(t *testing.T) {
	p, waits := recordingPolicy(2)
	calls := 0

	err := p.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return errLimited
	})

	require.ErrorIs(t, err, errLimited)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *waits)
}

func TestPolicy_Do_RetriesTransientLinearly(t *testing.T) {
	p, waits := recordingPolicy(2)
	calls := 0

	err := p.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *waits)
}

func TestPolicy_Do_FatalIsNotRetried(t *testing.T) {
	p, waits := recordingPolicy(2)
	calls := 0

	err := p.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestPolicy_Do_StopsWhenContextCancelled(t *testing.T) {
	p, _ := recordingPolicy(5)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := p.Do(ctx, "search", func(ctx context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ZeroRetries(t *testing.T) {
	p, _ := recordingPolicy(-1)
	calls := 0
	err := p.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return errLimited
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
