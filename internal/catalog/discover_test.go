package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/catalog/mock"
	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

// feedAdapter adds a discovery feed to a mock adapter.
type feedAdapter struct {
	*mock.Adapter

	mu      sync.Mutex
	feed    []collectable.Collectable
	err     error
	queries []provider.DiscoverQuery
}

func (f *feedAdapter) Discover(_ context.Context, q provider.DiscoverQuery) ([]collectable.Collectable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.feed, nil
}

func newDiscoverRouter(t *testing.T, yamlText string, env map[string]string, adapters ...provider.Adapter) *Router {
	t.Helper()
	cfg, err := ParseProviderConfig([]byte(yamlText))
	require.NoError(t, err)

	byName := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	r, err := NewRouter(StaticSource{Config: cfg}, byName,
		WithLogger(zerolog.Nop()),
		WithEnvLookup(envMap(env)),
		WithBreaker(BreakerConfig{Failures: 1, Cooldown: time.Hour}))
	require.NoError(t, err)
	return r
}

func TestRouter_Discover(t *testing.T) {
	lists := &feedAdapter{
		Adapter: mock.NewAdapter("lists"),
		feed:    []collectable.Collectable{book("The Women", "Kristin Hannah", 2024)},
	}
	r := newDiscoverRouter(t, "containers:\n  books:\n    apis:\n      - name: lists\n        priority: 4\n", nil,
		lists, mock.NewAdapter("plain"))

	got, err := r.Discover(context.Background(), "lists", provider.DiscoverQuery{List: "young-adult"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lists", got[0].MatchedSource)
	require.NotNil(t, got[0].SourcePriority)
	assert.Equal(t, 4, *got[0].SourcePriority)
	assert.Equal(t, []provider.DiscoverQuery{{List: "young-adult"}}, lists.queries)

	got[0].Title = "mutated"
	assert.Equal(t, "The Women", lists.feed[0].Title)

	_, err = r.Discover(context.Background(), "plain", provider.DiscoverQuery{})
	assert.ErrorIs(t, err, ErrNoDiscovery)
	_, err = r.Discover(context.Background(), "missing", provider.DiscoverQuery{})
	assert.ErrorIs(t, err, ErrNoDiscovery)
}

func TestRouter_DiscoverRespectsDisableFlags(t *testing.T) {
	newFeed := func(name string) *feedAdapter {
		return &feedAdapter{Adapter: mock.NewAdapter(name)}
	}
	configOff := newFeed("config_off")
	envOff := newFeed("env_off")
	unlisted := newFeed("unlisted")
	noKey := newFeed("no_key")
	noKey.SetConfigured(false)

	r := newDiscoverRouter(t, `
containers:
  books:
    apis:
      - name: config_off
        enabled: false
      - name: env_off
      - name: no_key
`, map[string]string{"DISABLE_ENV_OFF": "true", "DISABLE_UNLISTED": "1"},
		configOff, envOff, unlisted, noKey)

	for _, name := range []string{"config_off", "env_off", "unlisted"} {
		_, err := r.Discover(context.Background(), name, provider.DiscoverQuery{})
		assert.ErrorIs(t, err, ErrProviderDisabled, name)
	}
	_, err := r.Discover(context.Background(), "no_key", provider.DiscoverQuery{})
	assert.ErrorIs(t, err, provider.ErrNotConfigured)

	for _, f := range []*feedAdapter{configOff, envOff, unlisted, noKey} {
		assert.Empty(t, f.queries, f.Name())
	}
}

func TestRouter_DiscoverSharesBreaker(t *testing.T) {
	feed := &feedAdapter{Adapter: mock.NewAdapter("lists"), err: errors.New("upstream down")}
	r := newDiscoverRouter(t, "containers:\n  books:\n    apis:\n      - name: lists\n", nil, feed)

	_, err := r.Discover(context.Background(), "lists", provider.DiscoverQuery{})
	require.Error(t, err)

	_, err = r.Discover(context.Background(), "lists", provider.DiscoverQuery{})
	require.Error(t, err)
	assert.True(t, isBreakerOpen(err))
	assert.Len(t, feed.queries, 1)
	assert.Equal(t, "open", statusByName(r.Status())["lists"].Breaker)
}

func TestHandlers_Discover(t *testing.T) {
	feed := &feedAdapter{
		Adapter: mock.NewAdapter("calendar"),
		feed:    []collectable.Collectable{mock.Item("Alien", "", 1979, collectable.KindMovie)},
	}
	broken := &feedAdapter{Adapter: mock.NewAdapter("broken"), err: errors.New("boom")}
	r := newDiscoverRouter(t, "containers:\n  movies:\n    apis:\n      - name: calendar\n      - name: broken\n",
		map[string]string{"DISABLE_OFF": "1"}, feed, broken, &feedAdapter{Adapter: mock.NewAdapter("off")}, mock.NewAdapter("plain"))
	handlers := NewHandlers(r, nil)

	e := echo.New()
	handlers.RegisterRoutes(e.Group("/api/v1/catalog"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/discover/calendar?year=2019&month=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Alien"`)
	assert.Equal(t, []provider.DiscoverQuery{{Year: 2019, Month: time.April}}, feed.queries)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad month", "/api/v1/catalog/discover/calendar?month=13", http.StatusBadRequest},
		{"bad year", "/api/v1/catalog/discover/calendar?year=soon", http.StatusBadRequest},
		{"no feed", "/api/v1/catalog/discover/plain", http.StatusNotFound},
		{"unknown provider", "/api/v1/catalog/discover/nobody", http.StatusNotFound},
		{"disabled", "/api/v1/catalog/discover/off", http.StatusServiceUnavailable},
		{"upstream failure", "/api/v1/catalog/discover/broken", http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
