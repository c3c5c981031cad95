package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

// BreakerConfig controls the per-provider circuit breakers.
type BreakerConfig struct {
	// Failures is the number of consecutive adapter errors that open a breaker.
	// Zero disables breaking.
	Failures uint32
	// Cooldown is how long an open breaker rejects calls before probing again.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Failures: 5,
		Cooldown: 60 * time.Second,
	}
}

// errCallerGone marks adapter errors raised after the caller's context ended.
var errCallerGone = errors.New("caller context done")

// breakers holds one circuit breaker per provider name. A nil result is a
// success; only returned errors count towards tripping, except those caused
// by the caller giving up.
type breakers struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	logger zerolog.Logger
	byName map[string]*gobreaker.CircuitBreaker[[]collectable.Collectable]
}

func newBreakers(cfg BreakerConfig, logger zerolog.Logger) *breakers {
	return &breakers{
		cfg:    cfg,
		logger: logger,
		byName: make(map[string]*gobreaker.CircuitBreaker[[]collectable.Collectable]),
	}
}

func (b *breakers) get(name string) *gobreaker.CircuitBreaker[[]collectable.Collectable] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.byName[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[[]collectable.Collectable](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.Failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker changed state")
		},
	})
	b.byName[name] = cb
	return cb
}

// execute runs fn through the provider's breaker. With breaking disabled fn
// runs directly.
func (b *breakers) execute(name string, fn func() ([]collectable.Collectable, error)) ([]collectable.Collectable, error) {
	if b == nil || b.cfg.Failures == 0 {
		return fn()
	}
	return b.get(name).Execute(fn)
}

// state reports the breaker state for name, "closed" when none exists yet.
func (b *breakers) state(name string) string {
	if b == nil || b.cfg.Failures == 0 {
		return gobreaker.StateClosed.String()
	}
	b.mu.Lock()
	cb, ok := b.byName[name]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, errCallerGone) || errors.Is(err, context.Canceled)
}

// isBreakerOpen reports errors raised by the breaker itself rather than the adapter.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
