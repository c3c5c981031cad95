package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/catalog/mock"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

type memoryStore struct {
	stored []collectable.Collectable
	err    error
}

func (s *memoryStore) Store(_ context.Context, c collectable.Collectable) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored = append(s.stored, c)
	return "id-1", nil
}

func setupTestHandlers(t *testing.T, store CollectableStore) (*Handlers, *mock.Adapter, *mock.Adapter) {
	t.Helper()
	p1 := mock.NewAdapter("p1").WithResults(book("Dune", "Frank Herbert", 1965), book("Dune Messiah", "Frank Herbert", 1969))
	p2 := mock.NewAdapter("p2").WithResults(book("Dune", "Frank Herbert", 1965))
	r := newTestRouter(t, threeBookProviders, []*mock.Adapter{p1, p2})
	return NewHandlers(r, store), p1, p2
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %v", err)
	return he.Code
}

func TestHandlers_Lookup(t *testing.T) {
	handlers, p1, p2 := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/lookup?type=novel&title=Dune&year=1965&id=isbn13:9780441013593", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.Lookup(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got collectable.Collectable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, "p1", got.MatchedSource)
	assert.Equal(t, 0, p2.Calls())

	criteria := p1.Criteria()
	require.Len(t, criteria, 1)
	assert.Equal(t, 1965, criteria[0].Year)
	assert.Equal(t, "9780441013593", criteria[0].Identifiers["isbn13"])
}

func TestHandlers_LookupMerge(t *testing.T) {
	handlers, p1, p2 := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/lookup?type=books&title=Dune&mode=merge", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.Lookup(e.NewContext(req, rec)))

	var got collectable.Collectable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"p1", "p2"}, got.ContributingSources)
	assert.Equal(t, 1, p1.Calls())
	assert.Equal(t, 1, p2.Calls())
}

func TestHandlers_LookupErrors(t *testing.T) {
	handlers, _, _ := setupTestHandlers(t, nil)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing type", "title=Dune", http.StatusBadRequest},
		{"unknown type", "type=boardgames&title=Dune", http.StatusBadRequest},
		{"missing title", "type=books&title=%20", http.StatusBadRequest},
		{"bad year", "type=books&title=Dune&year=sixty", http.StatusBadRequest},
		{"bad identifier", "type=books&title=Dune&id=isbn", http.StatusBadRequest},
		{"bad mode", "type=books&title=Dune&mode=parallel", http.StatusBadRequest},
		{"no config for container", "type=movies&title=Dune", http.StatusNotFound},
	}

	e := echo.New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/lookup?"+tt.query, nil)
			err := handlers.Lookup(e.NewContext(req, httptest.NewRecorder()))
			assert.Equal(t, tt.want, httpStatus(t, err))
		})
	}
}

func TestHandlers_Search(t *testing.T) {
	handlers, _, _ := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search?type=books&title=Dune&limit=5", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.Search(e.NewContext(req, rec)))

	var got []collectable.Collectable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Dune Messiah", got[1].Title)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search?type=books&title=Dune&limit=0", nil)
	err := handlers.Search(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestHandlers_SearchEmpty(t *testing.T) {
	handlers, _, _ := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search?type=music&title=Dune", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.Search(e.NewContext(req, rec)))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandlers_Providers(t *testing.T) {
	handlers, _, _ := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/providers?type=manga", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.Providers(e.NewContext(req, rec)))

	var got []ProviderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "p1", got[0].Name)
	assert.True(t, got[0].Configured)
	assert.False(t, got[2].Registered)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/providers?type=movies", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handlers.Providers(e.NewContext(req, rec)))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandlers_Reload(t *testing.T) {
	handlers, _, _ := setupTestHandlers(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reload", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.Reload(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlers_AddCollectable(t *testing.T) {
	store := &memoryStore{}
	handlers, _, _ := setupTestHandlers(t, store)

	e := echo.New()
	body := `{"type":"books","criteria":{"title":"Dune","year":1965}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/collectables", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, handlers.AddCollectable(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got AddCollectableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Dune", got.Collectable.Title)
	require.Len(t, store.stored, 1)
	assert.Equal(t, got.Collectable.Fingerprint, store.stored[0].Fingerprint)
}

func TestHandlers_AddCollectableErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		store *memoryStore
		want  int
	}{
		{"bad json", `{`, &memoryStore{}, http.StatusBadRequest},
		{"empty title", `{"type":"books","criteria":{"title":""}}`, &memoryStore{}, http.StatusBadRequest},
		{"unknown type", `{"type":"nope","criteria":{"title":"Dune"}}`, &memoryStore{}, http.StatusBadRequest},
		{"bad mode", `{"type":"books","mode":"x","criteria":{"title":"Dune"}}`, &memoryStore{}, http.StatusBadRequest},
		{"no match", `{"type":"games","criteria":{"title":"Dune"}}`, &memoryStore{}, http.StatusNotFound},
		{"store failure", `{"type":"books","criteria":{"title":"Dune"}}`, &memoryStore{err: errors.New("disk full")}, http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			handlers, _, _ := setupTestHandlers(t, tt.store)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/collectables", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			err := handlers.AddCollectable(e.NewContext(req, httptest.NewRecorder()))
			assert.Equal(t, tt.want, httpStatus(t, err))
		})
	}
}

func TestHandlers_RegisterRoutes(t *testing.T) {
	e := echo.New()
	withStore, _, _ := setupTestHandlers(t, &memoryStore{})
	withStore.RegisterRoutes(e.Group("/api/v1/catalog"))

	paths := make(map[string]bool)
	for _, r := range e.Routes() {
		paths[r.Method+" "+r.Path] = true
	}
	assert.True(t, paths["GET /api/v1/catalog/lookup"])
	assert.True(t, paths["GET /api/v1/catalog/search"])
	assert.True(t, paths["GET /api/v1/catalog/providers"])
	assert.True(t, paths["GET /api/v1/catalog/discover/:provider"])
	assert.True(t, paths["POST /api/v1/catalog/reload"])
	assert.True(t, paths["POST /api/v1/catalog/collectables"])
}
