package igdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const zeldaJSON = `[
	{"id":1,"name":"The Legend of Zelda: Breath of the Wild DLC","first_release_date":1498780800},
	{"id":7346,"name":"The Legend of Zelda: Breath of the Wild","first_release_date":1488499200,
	 "summary":"Step into a world of discovery.","total_rating_count":3000,"url":"https://www.igdb.com/games/botw",
	 "cover":{"id":1,"image_id":"co3p2d"},
	 "genres":[{"id":31,"name":"Adventure"}],"themes":[{"id":1,"name":"Open world"}],
	 "platforms":[{"id":130,"name":"Nintendo Switch"},{"id":41,"name":"Wii U"}],
	 "involved_companies":[
		{"company":{"name":"Nintendo EPD"},"developer":true},
		{"company":{"name":"Nintendo"},"publisher":true}
	 ]}
]`

type fakeIGDB struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	gameCalls   atomic.Int32
	rejectFirst atomic.Bool
	lastBody    atomic.Value
}

func newFakeIGDB(t *testing.T) *fakeIGDB {
	t.Helper()
	f := &fakeIGDB{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			n := f.tokenCalls.Add(1)
			assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
			assert.Equal(t, "cid", r.URL.Query().Get("client_id"))
			w.Write([]byte(`{"access_token":"token-` + string(rune('0'+n)) + `","expires_in":3600,"token_type":"bearer"}`))
		case "/games":
			f.gameCalls.Add(1)
			assert.Equal(t, "cid", r.Header.Get("Client-ID"))
			if f.rejectFirst.CompareAndSwap(true, false) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			body, _ := io.ReadAll(r.Body)
			f.lastBody.Store(string(body))
			w.Write([]byte(zeldaJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIGDB) client() *Client {
	cfg := config.IGDBConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     f.server.URL + "/oauth2/token",
	}
	cfg.BaseURL = f.server.URL
	cfg.Timeout = 5
	return NewClient(cfg, zerolog.Nop())
}

func TestAdapter_Lookup(t *testing.T) {
	fake := newFakeIGDB(t)
	adapter := NewAdapter(fake.client(), zerolog.Nop())

	result, err := adapter.Lookup(context.Background(), collectable.SearchCriteria{
		Title:  "The Legend of Zelda: Breath of the Wild",
		Year:   2017,
		Format: "Wii U",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "igdb:7346", result.ExternalID)
	assert.Equal(t, 2017, result.Year)
	assert.Equal(t, collectable.KindGame, result.Kind)
	assert.Equal(t, "Nintendo EPD", result.PrimaryCreator)
	assert.Equal(t, []string{"Nintendo"}, result.Publishers)
	assert.Equal(t, "Wii U", result.SystemName)
	assert.Equal(t, []string{"Nintendo Switch", "Wii U"}, result.Formats)
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_1080p/co3p2d.jpg", result.CoverURL)
	assert.Contains(t, fake.lastBody.Load(), `search "The Legend of Zelda: Breath of the Wild";`)
}

func TestClient_TokenIsCached(t *testing.T) {
	fake := newFakeIGDB(t)
	client := fake.client()

	for i := 0; i < 3; i++ {
		_, err := client.SearchGames(context.Background(), "zelda", 5)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	assert.Equal(t, int32(3), fake.gameCalls.Load())
}

func TestClient_RefreshesBeforeExpiry(t *testing.T) {
	fake := newFakeIGDB(t)
	client := fake.client()
	now := time.Now()
	client.now = func() time.Time { return now }

	_, err := client.SearchGames(context.Background(), "zelda", 5)
	require.NoError(t, err)

	// Inside the refresh margin of a 3600s token.
	now = now.Add(3600*time.Second - 30*time.Second)
	_, err = client.SearchGames(context.Background(), "zelda", 5)
	require.NoError(t, err)

	assert.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestClient_RetriesOnceOnUnauthorized(t *testing.T) {
	fake := newFakeIGDB(t)
	fake.rejectFirst.Store(true)

	games, err := fake.client().SearchGames(context.Background(), "zelda", 5)
	require.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, int32(2), fake.tokenCalls.Load())
	assert.Equal(t, int32(2), fake.gameCalls.Load())
}

func TestAdapter_PersistentUnauthorizedIsNull(t *testing.T) {
	var gameCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token") {
			w.Write([]byte(`{"access_token":"t","expires_in":3600}`))
			return
		}
		gameCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := config.IGDBConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: server.URL + "/token"}
	cfg.BaseURL = server.URL
	adapter := NewAdapter(NewClient(cfg, zerolog.Nop()), zerolog.Nop())

	result, err := adapter.Lookup(context.Background(), collectable.SearchCriteria{Title: "zelda"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(2), gameCalls.Load())
}

func TestAdapter_UnconfiguredAndEmptyTitle(t *testing.T) {
	fake := newFakeIGDB(t)

	unconfigured := NewAdapter(NewClient(config.IGDBConfig{}, zerolog.Nop()), zerolog.Nop())
	assert.False(t, unconfigured.IsConfigured())
	result, err := unconfigured.Lookup(context.Background(), collectable.SearchCriteria{Title: "zelda"})
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = NewAdapter(fake.client(), zerolog.Nop()).Lookup(context.Background(), collectable.SearchCriteria{})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(0), fake.tokenCalls.Load()+fake.gameCalls.Load())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, quote(`say "hi"`))
}
