// Package provider defines the contract shared by every upstream catalog
// adapter, the provider error taxonomy and the HTTP plumbing adapters use
// to talk to quota-limited upstreams.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

// Adapter is one upstream metadata source.
type Adapter interface {
	// Name returns the provider name used in config and provenance.
	Name() string

	// IsConfigured returns true if required credentials are present.
	IsConfigured() bool

	// Lookup returns the best match, or nil when there is none.
	Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error)

	// LookupMany returns up to limit ranked matches.
	LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error)
}

// DiscoverQuery narrows a discovery feed. Zero fields take the provider's
// default: the current month, or its main list.
type DiscoverQuery struct {
	List  string
	Year  int
	Month time.Month
}

// Discoverer is implemented by adapters that publish a feed of current or
// upcoming items, independent of any search.
type Discoverer interface {
	Discover(ctx context.Context, q DiscoverQuery) ([]collectable.Collectable, error)
}

// Resolve applies the "no result is not an error" rule: not found and not
// configured become nil, unauthorized is logged and becomes nil, and
// everything else is returned unchanged.
func Resolve(logger zerolog.Logger, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotConfigured):
		return nil
	case errors.Is(err, ErrUnauthorized):
		logger.Error().Err(err).Msg("upstream rejected credentials, check provider configuration")
		return nil
	default:
		return err
	}
}

// First returns the first element of results or nil.
func First(results []collectable.Collectable) *collectable.Collectable {
	if len(results) == 0 {
		return nil
	}
	first := results[0]
	return &first
}
