// Package catalog routes catalog lookups across the configured upstream
// providers of each media container, in fallback or merge mode.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

const defaultLookupLimit = 10

// LookupOptions tunes a single lookup.
type LookupOptions struct {
	// Mode overrides the container's configured mode when set.
	Mode Mode
	// SkipCache bypasses the lookup cache for reads; hits are still stored.
	SkipCache bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = logger.With().Str("component", "catalog").Logger()
	}
}

// WithCache enables the lookup cache.
func WithCache(cache *Cache) Option {
	return func(r *Router) {
		r.cache = cache
	}
}

// WithEnvLookup replaces os.LookupEnv for DISABLE_<PROVIDER> flags.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(r *Router) {
		r.lookupEnv = fn
	}
}

// WithBreaker configures the per-provider circuit breakers.
func WithBreaker(cfg BreakerConfig) Option {
	return func(r *Router) {
		r.breakerCfg = cfg
	}
}

// Router is the catalog entry point. It is safe for concurrent use.
type Router struct {
	source     ConfigSource
	adapters   map[string]provider.Adapter
	snap       atomic.Pointer[snapshot]
	reloadMu   sync.Mutex
	cache      *Cache
	breakerCfg BreakerConfig
	breakers   *breakers
	lookupEnv  func(string) (string, bool)
	logger     zerolog.Logger
}

// NewRouter creates a router over pre-built adapters keyed by provider name
// and loads the initial config from source.
func NewRouter(source ConfigSource, adapters map[string]provider.Adapter, opts ...Option) (*Router, error) {
	r := &Router{
		source:     source,
		adapters:   make(map[string]provider.Adapter, len(adapters)),
		breakerCfg: DefaultBreakerConfig(),
		lookupEnv:  os.LookupEnv,
		logger:     zerolog.Nop(),
	}
	for name, a := range adapters {
		if a != nil {
			r.adapters[name] = a
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breakers = newBreakers(r.breakerCfg, r.logger)

	if err := r.ReloadConfig(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// ReloadConfig re-reads the config source and swaps the snapshot. Lookups
// already running keep the snapshot they started with. On failure the
// previous snapshot stays active.
func (r *Router) ReloadConfig(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	cfg, err := r.source.Load(ctx)
	if err != nil {
		ConfigReloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to reload provider config: %w", err)
	}

	next := newSnapshot(cfg)
	for key, c := range next.containers {
		for _, api := range c.apis {
			if _, ok := r.adapters[api.Name]; !ok {
				r.logger.Warn().Str("container", key).Str("provider", api.Name).
					Msg("Provider config references an unknown adapter")
			}
		}
	}

	r.snap.Store(next)
	if r.cache != nil {
		r.cache.Clear()
	}
	ConfigReloadsTotal.WithLabelValues("success").Inc()
	r.logger.Info().Int("containers", len(next.containers)).Msg("Provider config loaded")
	return nil
}

// EnabledAPIs returns the APIs of a container that are enabled and not
// env-disabled, in ascending priority order.
func (r *Router) EnabledAPIs(containerType string) []APIConfig {
	container, ok := ResolveContainer(containerType)
	if !ok {
		return nil
	}
	snap := r.snap.Load()
	if snap == nil {
		return nil
	}
	return r.enabledAPIs(snap.containers[container])
}

func (r *Router) enabledAPIs(c containerSnapshot) []APIConfig {
	out := make([]APIConfig, 0, len(c.apis))
	for _, api := range c.apis {
		if api.Enabled && !r.envDisabled(api) {
			out = append(out, api)
		}
	}
	return out
}

func (r *Router) envDisabled(api APIConfig) bool {
	v, ok := r.lookupEnv(api.DisableKey())
	return ok && isTruthy(v)
}

// route is one adapter that will be consulted for a lookup.
type route struct {
	api     APIConfig
	adapter provider.Adapter
}

// plan resolves the container and returns the adapters to consult.
func (r *Router) plan(containerType string, override Mode) (string, Mode, []route) {
	container, ok := ResolveContainer(containerType)
	if !ok {
		return "", "", nil
	}
	snap := r.snap.Load()
	if snap == nil {
		return container, "", nil
	}
	cs, ok := snap.containers[container]
	if !ok {
		return container, "", nil
	}

	mode := cs.mode
	if override != "" {
		mode = override
	}

	routes := make([]route, 0, len(cs.apis))
	for _, api := range r.enabledAPIs(cs) {
		a, ok := r.adapters[api.Name]
		if !ok || !a.IsConfigured() {
			ProviderRequestsTotal.WithLabelValues(api.Name, outcomeSkipped).Inc()
			continue
		}
		routes = append(routes, route{api: api, adapter: a})
	}
	return container, mode, routes
}

// Lookup returns the best match for criteria in the given container, or nil
// when nothing matched. Provider failures never surface to the caller.
func (r *Router) Lookup(ctx context.Context, criteria collectable.SearchCriteria, containerType string, opts LookupOptions) (*collectable.Collectable, error) {
	if !criteria.Valid() {
		return nil, nil
	}
	container, mode, routes := r.plan(containerType, opts.Mode)
	if len(routes) == 0 {
		return nil, nil
	}

	key := cacheKey(container, mode, routeNames(routes), 0, criteria)
	if cached, ok := r.cached(key, opts); ok {
		LookupsTotal.WithLabelValues(container, string(mode), outcomeCached).Inc()
		return provider.First(cached), nil
	}

	var result *collectable.Collectable
	switch mode {
	case ModeMerge:
		result = r.lookupMerge(ctx, criteria, routes)
	default:
		result = r.lookupFallback(ctx, criteria, routes)
	}

	if result == nil {
		LookupsTotal.WithLabelValues(container, string(mode), outcomeMiss).Inc()
		return nil, nil
	}
	LookupsTotal.WithLabelValues(container, string(mode), outcomeHit).Inc()
	if r.cache != nil {
		r.cache.Set(key, []collectable.Collectable{*result})
	}
	return result, nil
}

// LookupMany returns up to limit matches. Fallback mode returns the first
// non-empty provider list; merge mode groups results of all providers by
// fingerprint and merges each group by priority.
func (r *Router) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, containerType string, limit int, opts LookupOptions) ([]collectable.Collectable, error) {
	if !criteria.Valid() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	container, mode, routes := r.plan(containerType, opts.Mode)
	if len(routes) == 0 {
		return nil, nil
	}

	key := cacheKey(container, mode, routeNames(routes), limit, criteria)
	if cached, ok := r.cached(key, opts); ok {
		LookupsTotal.WithLabelValues(container, string(mode), outcomeCached).Inc()
		return cached, nil
	}

	var results []collectable.Collectable
	switch mode {
	case ModeMerge:
		results = r.lookupManyMerge(ctx, criteria, routes, limit)
	default:
		results = r.lookupManyFallback(ctx, criteria, routes, limit)
	}

	if len(results) == 0 {
		LookupsTotal.WithLabelValues(container, string(mode), outcomeMiss).Inc()
		return nil, nil
	}
	LookupsTotal.WithLabelValues(container, string(mode), outcomeHit).Inc()
	if r.cache != nil {
		r.cache.Set(key, results)
	}
	return results, nil
}

func (r *Router) cached(key string, opts LookupOptions) ([]collectable.Collectable, bool) {
	if r.cache == nil || opts.SkipCache {
		return nil, false
	}
	results, ok := r.cache.Get(key)
	if ok {
		r.logger.Debug().Str("key", key).Msg("Catalog cache hit")
	}
	return results, ok
}

func (r *Router) lookupFallback(ctx context.Context, criteria collectable.SearchCriteria, routes []route) *collectable.Collectable {
	for i, rt := range routes {
		rt := rt
		results, err := r.call(ctx, rt, func() ([]collectable.Collectable, error) {
			return single(rt.adapter.Lookup(ctx, criteria))
		})
		if err != nil || len(results) == 0 {
			continue
		}
		result := results[0].Clone()
		tag(result, rt.api, i)
		return result
	}
	return nil
}

func (r *Router) lookupMerge(ctx context.Context, criteria collectable.SearchCriteria, routes []route) *collectable.Collectable {
	hits := make([]*collectable.Collectable, len(routes))

	var g errgroup.Group
	for i, rt := range routes {
		i, rt := i, rt
		g.Go(func() error {
			results, err := r.call(ctx, rt, func() ([]collectable.Collectable, error) {
				return single(rt.adapter.Lookup(ctx, criteria))
			})
			if err != nil || len(results) == 0 {
				return nil
			}
			hit := results[0].Clone()
			tag(hit, rt.api, i)
			hits[i] = hit
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]collectable.Collectable, 0, len(hits))
	for _, hit := range hits {
		if hit != nil {
			collected = append(collected, *hit)
		}
	}
	if len(collected) == 0 {
		return nil
	}
	sort.SliceStable(collected, func(i, j int) bool {
		return *collected[i].SourcePriority < *collected[j].SourcePriority
	})

	merged := Merge(collected)
	merged.ContributingSources = sourceNames(collected)
	return merged
}

func (r *Router) lookupManyFallback(ctx context.Context, criteria collectable.SearchCriteria, routes []route, limit int) []collectable.Collectable {
	for i, rt := range routes {
		rt := rt
		results, err := r.call(ctx, rt, func() ([]collectable.Collectable, error) {
			return rt.adapter.LookupMany(ctx, criteria, limit)
		})
		if err != nil || len(results) == 0 {
			continue
		}
		out := cloneAll(results)
		for j := range out {
			tag(&out[j], rt.api, i)
		}
		if len(out) > limit {
			out = out[:limit]
		}
		return out
	}
	return nil
}

func (r *Router) lookupManyMerge(ctx context.Context, criteria collectable.SearchCriteria, routes []route, limit int) []collectable.Collectable {
	perRoute := make([][]collectable.Collectable, len(routes))

	var g errgroup.Group
	for i, rt := range routes {
		i, rt := i, rt
		g.Go(func() error {
			results, err := r.call(ctx, rt, func() ([]collectable.Collectable, error) {
				return rt.adapter.LookupMany(ctx, criteria, limit)
			})
			if err != nil {
				return nil
			}
			out := cloneAll(results)
			for j := range out {
				tag(&out[j], rt.api, i)
			}
			perRoute[i] = out
			return nil
		})
	}
	_ = g.Wait()

	// Routes are already in priority order, so first appearance of a
	// fingerprint orders groups by best provider then provider rank.
	var order []string
	groups := make(map[string][]collectable.Collectable)
	for _, results := range perRoute {
		for _, c := range results {
			key := c.Fingerprint
			if key == "" {
				key = collectable.Fingerprint(c.Title, c.PrimaryCreator, c.Year, c.Kind)
			}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], c)
		}
	}

	out := make([]collectable.Collectable, 0, min(len(order), limit))
	for _, key := range order {
		if len(out) == limit {
			break
		}
		group := groups[key]
		merged := Merge(group)
		merged.ContributingSources = sourceNames(group)
		out = append(out, *merged)
	}
	return out
}

// call runs one adapter call through its breaker and records metrics. Errors
// are logged here and only reported to the caller as a failed adapter.
func (r *Router) call(ctx context.Context, rt route, fn func() ([]collectable.Collectable, error)) ([]collectable.Collectable, error) {
	name := rt.api.Name
	start := time.Now()
	results, err := r.breakers.execute(name, func() ([]collectable.Collectable, error) {
		results, err := fn()
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return results, err
	})
	ProviderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err != nil && isBreakerOpen(err):
		ProviderRequestsTotal.WithLabelValues(name, outcomeSkipped).Inc()
		r.logger.Debug().Str("provider", name).Msg("Provider circuit open, skipping")
		return nil, err
	case err != nil:
		ProviderRequestsTotal.WithLabelValues(name, outcomeError).Inc()
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Str("provider", name).Msg("Provider lookup failed")
		}
		return nil, err
	case len(results) == 0:
		ProviderRequestsTotal.WithLabelValues(name, outcomeMiss).Inc()
		return nil, nil
	default:
		ProviderRequestsTotal.WithLabelValues(name, outcomeHit).Inc()
		return results, nil
	}
}

func routeNames(routes []route) []string {
	names := make([]string, len(routes))
	for i, rt := range routes {
		names[i] = rt.api.Name
	}
	return names
}

// single adapts Lookup to the slice form the breakers run.
func single(c *collectable.Collectable, err error) ([]collectable.Collectable, error) {
	if err != nil || c == nil {
		return nil, err
	}
	return []collectable.Collectable{*c}, nil
}

// tag attaches provenance to a result owned by the router.
func tag(c *collectable.Collectable, api APIConfig, index int) {
	idx := index
	priority := api.Priority
	c.MatchedSource = api.Name
	c.SourceIndex = &idx
	c.SourcePriority = &priority
}

func sourceNames(results []collectable.Collectable) []string {
	names := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, c := range results {
		if c.MatchedSource == "" || seen[c.MatchedSource] {
			continue
		}
		seen[c.MatchedSource] = true
		names = append(names, c.MatchedSource)
	}
	return names
}

// ProviderStatus describes one configured API of a container.
type ProviderStatus struct {
	Container   string `json:"container"`
	Mode        Mode   `json:"mode"`
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
	EnvDisabled bool   `json:"envDisabled"`
	Registered  bool   `json:"registered"`
	Configured  bool   `json:"configured"`
	Breaker     string `json:"breaker"`
}

// Active reports whether lookups will consult this provider.
func (s ProviderStatus) Active() bool {
	return s.Enabled && !s.EnvDisabled && s.Registered && s.Configured
}

// Status reports the state of every configured API, ordered by container
// then priority.
func (r *Router) Status() []ProviderStatus {
	snap := r.snap.Load()
	if snap == nil {
		return nil
	}

	keys := make([]string, 0, len(snap.containers))
	for key := range snap.containers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []ProviderStatus
	for _, key := range keys {
		cs := snap.containers[key]
		for _, api := range cs.apis {
			a, registered := r.adapters[api.Name]
			out = append(out, ProviderStatus{
				Container:   key,
				Mode:        cs.mode,
				Name:        api.Name,
				Priority:    api.Priority,
				Enabled:     api.Enabled,
				EnvDisabled: r.envDisabled(api),
				Registered:  registered,
				Configured:  registered && a.IsConfigured(),
				Breaker:     r.breakers.state(api.Name),
			})
		}
	}
	return out
}
