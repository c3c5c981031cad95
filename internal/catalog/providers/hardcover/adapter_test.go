package hardcover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const searchResponse = `{"data":{"search":{"results":{"found":2,"hits":[
	{"document":{"id":"2","slug":"children-of-dune","title":"Children of Dune","author_names":["Frank Herbert"],"release_year":1976,"users_count":4000}},
	{"document":{"id":"312460","slug":"dune","title":"Dune","subtitle":"Deluxe Edition","author_names":["Frank Herbert"],
	 "release_year":1965,"isbns":["9780441013593","0441013597"],"genres":["Science Fiction","Fiction"],"moods":["adventurous"],
	 "users_count":30000,"ratings_count":8000,"description":"A desert planet.",
	 "image":{"url":"https://assets.hardcover.app/dune.jpg","width":400,"height":600}}}
]}}}}`

func newTestAdapter(t *testing.T, token string, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.HardcoverConfig{Token: token}
	cfg.BaseURL = server.URL
	cfg.Timeout = 5
	cfg.Retries = 2
	return NewAdapter(cfg, zerolog.Nop())
}

func TestAdapter_Lookup(t *testing.T) {
	adapter := newTestAdapter(t, "abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		var req graphQLRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Dune", req.Variables["query"])
		assert.Contains(t, req.Query, "search(")

		w.Write([]byte(searchResponse))
	})

	result, err := adapter.Lookup(context.Background(), collectable.SearchCriteria{Title: "Dune", Format: "Hardcover"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Dune", result.Title)
	assert.Equal(t, "Deluxe Edition", result.Subtitle)
	assert.Equal(t, "hardcover:312460", result.ExternalID)
	assert.Equal(t, []string{"adventurous"}, result.Tags)
	assert.Equal(t, []string{"Hardcover"}, result.Formats)
	assert.Equal(t, "https://assets.hardcover.app/dune.jpg", result.CoverURL)
	assert.Equal(t, "https://hardcover.app/books/dune", result.Sources[0].URL)
	assert.Equal(t, collectable.Fingerprint("Dune", "Frank Herbert", 1965, collectable.KindBook), result.Fingerprint)
}

func TestAdapter_GraphQLRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestAdapter(t, "Bearer abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"errors":[{"message":"Throttled: rate limit exceeded"}]}`))
			return
		}
		w.Write([]byte(searchResponse))
	})

	results, err := adapter.LookupMany(context.Background(), collectable.SearchCriteria{Title: "Dune"}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAdapter_GraphQLErrorPropagates(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestAdapter(t, "abc", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"errors":[{"message":"field 'search' not found"}]}`))
	})

	_, err := adapter.Lookup(context.Background(), collectable.SearchCriteria{Title: "Dune"})
	require.ErrorIs(t, err, provider.ErrUnexpected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAdapter_Unconfigured(t *testing.T) {
	var calls atomic.Int32
	adapter := newTestAdapter(t, "", func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	assert.False(t, adapter.IsConfigured())
	result, err := adapter.Lookup(context.Background(), collectable.SearchCriteria{Title: "Dune"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(0), calls.Load())
}
