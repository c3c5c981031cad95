package providers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.TMDB.APIKey = "key"

	adapters := Build(cfg.Providers, zerolog.Nop())

	for _, name := range []string{"tmdb", "tmdb_tv", "igdb", "openlibrary", "hardcover", "nytbooks", "bluray", "musicbrainz"} {
		a, ok := adapters[name]
		if assert.True(t, ok, name) {
			assert.Equal(t, name, a.Name())
		}
	}

	assert.True(t, adapters["tmdb"].IsConfigured())
	assert.True(t, adapters["tmdb_tv"].IsConfigured())
	assert.True(t, adapters["openlibrary"].IsConfigured(), "keyless provider")
	assert.False(t, adapters["hardcover"].IsConfigured())
}

func TestBuildMock(t *testing.T) {
	built := Build(config.Default().Providers, zerolog.Nop())
	mocks := BuildMock()

	require.Len(t, mocks, len(built))
	for name := range built {
		a, ok := mocks[name]
		if assert.True(t, ok, name) {
			assert.True(t, a.IsConfigured(), name)
		}
	}

	got, err := mocks["tmdb_tv"].Lookup(context.Background(), collectable.SearchCriteria{Title: "Breaking Bad"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Breaking Bad", got.Title)
	assert.NotEmpty(t, got.Fingerprint)

	got, err = mocks["nytbooks"].Lookup(context.Background(), collectable.SearchCriteria{Title: "Dune"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
