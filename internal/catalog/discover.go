package catalog

import (
	"context"
	"errors"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

var (
	// ErrNoDiscovery is returned for providers that are unknown or publish no feed.
	ErrNoDiscovery = errors.New("provider has no discovery feed")
	// ErrProviderDisabled is returned when config or env switches the provider off.
	ErrProviderDisabled = errors.New("provider is disabled")
)

// Discover returns the discovery feed of the named provider. The provider
// must implement provider.Discoverer. It is refused when every config entry
// naming it is disabled, or when its env flag is set. Calls share the
// provider's circuit breaker and metrics with lookups.
func (r *Router) Discover(ctx context.Context, name string, q provider.DiscoverQuery) ([]collectable.Collectable, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, ErrNoDiscovery
	}
	feed, ok := a.(provider.Discoverer)
	if !ok {
		return nil, ErrNoDiscovery
	}

	api, active := r.discoveryAPI(name)
	if !active {
		ProviderRequestsTotal.WithLabelValues(name, outcomeSkipped).Inc()
		return nil, ErrProviderDisabled
	}
	if !a.IsConfigured() {
		ProviderRequestsTotal.WithLabelValues(name, outcomeSkipped).Inc()
		return nil, provider.ErrNotConfigured
	}

	results, err := r.call(ctx, route{api: api, adapter: a}, func() ([]collectable.Collectable, error) {
		return feed.Discover(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	out := cloneAll(results)
	for i := range out {
		tag(&out[i], api, 0)
	}
	return out, nil
}

// discoveryAPI picks the config entry governing a discovery call. Providers
// absent from the config still honour their default env flag.
func (r *Router) discoveryAPI(name string) (APIConfig, bool) {
	fallback := APIConfig{Name: name, Enabled: true}

	var configured []APIConfig
	if snap := r.snap.Load(); snap != nil {
		for _, cs := range snap.containers {
			for _, api := range cs.apis {
				if api.Name == name {
					configured = append(configured, api)
				}
			}
		}
	}
	if len(configured) == 0 {
		return fallback, !r.envDisabled(fallback)
	}
	for _, api := range configured {
		if api.Enabled && !r.envDisabled(api) {
			return api, true
		}
	}
	return configured[0], false
}
