// Package mock provides a programmable catalog adapter for router tests and
// developer mode.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

var _ provider.Adapter = (*Adapter)(nil)

// Adapter returns canned results and records how often it was called.
type Adapter struct {
	name       string
	configured atomic.Bool

	mu      sync.Mutex
	results []collectable.Collectable
	err     error
	delay   time.Duration
	seen    []collectable.SearchCriteria

	calls atomic.Int32
}

// NewAdapter creates a configured mock adapter that returns nothing.
func NewAdapter(name string) *Adapter {
	a := &Adapter{name: name}
	a.configured.Store(true)
	return a
}

// WithResults sets the results returned by every call.
func (a *Adapter) WithResults(results ...collectable.Collectable) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = results
	return a
}

// WithError makes every call fail with err.
func (a *Adapter) WithError(err error) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

// WithDelay makes every call wait before answering.
func (a *Adapter) WithDelay(d time.Duration) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
	return a
}

// SetConfigured toggles IsConfigured.
func (a *Adapter) SetConfigured(v bool) *Adapter {
	a.configured.Store(v)
	return a
}

// Calls returns the number of Lookup and LookupMany calls so far.
func (a *Adapter) Calls() int {
	return int(a.calls.Load())
}

// Criteria returns the criteria of every call so far.
func (a *Adapter) Criteria() []collectable.SearchCriteria {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]collectable.SearchCriteria(nil), a.seen...)
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) IsConfigured() bool { return a.configured.Load() }

func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() {
		return nil, nil
	}
	a.calls.Add(1)

	a.mu.Lock()
	a.seen = append(a.seen, criteria)
	results, err, delay := a.results, a.err, a.delay
	a.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]collectable.Collectable, len(results))
	for i := range results {
		out[i] = *results[i].Clone()
	}
	return out, nil
}

// Item builds a finalized collectable for tests.
func Item(title, creator string, year int, kind collectable.Kind) collectable.Collectable {
	c := collectable.Collectable{
		Title:          title,
		PrimaryCreator: creator,
		Year:           year,
		Kind:           kind,
	}
	if creator != "" {
		c.Creators = []string{creator}
	}
	collectable.Finalize(&c)
	return c
}
