// Package providers builds the upstream catalog adapters from configuration.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/mock"
	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/bluray"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/hardcover"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/igdb"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/musicbrainz"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/nytbooks"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/openlibrary"
	"github.com/shelfwise/shelfwise/internal/catalog/providers/tmdb"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

// Build creates every known adapter keyed by the name the provider config
// refers to. Adapters without credentials are still returned; the router
// skips them through IsConfigured.
func Build(cfg config.ProvidersConfig, logger zerolog.Logger) map[string]provider.Adapter {
	tmdbClient := tmdb.NewClient(cfg.TMDB, logger)
	igdbClient := igdb.NewClient(cfg.IGDB, logger)

	adapters := []provider.Adapter{
		tmdb.NewMovieAdapter(tmdbClient, logger),
		tmdb.NewTVAdapter(tmdbClient, logger),
		igdb.NewAdapter(igdbClient, logger),
		openlibrary.NewAdapter(cfg.OpenLibrary, logger),
		hardcover.NewAdapter(cfg.Hardcover, logger),
		nytbooks.NewAdapter(cfg.NYTBooks, logger),
		bluray.NewAdapter(cfg.Bluray, logger),
		musicbrainz.NewAdapter(cfg.MusicBrainz, logger),
	}

	out := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}

// BuildMock returns in-memory adapters under the same names as Build, each
// answering with a small fixed catalog. Used by --mock.
func BuildMock() map[string]provider.Adapter {
	adapters := []*mock.Adapter{
		mock.NewAdapter("tmdb").WithResults(
			mock.Item("Dune", "Denis Villeneuve", 2021, collectable.KindMovie),
			mock.Item("Arrival", "Denis Villeneuve", 2016, collectable.KindMovie),
		),
		mock.NewAdapter("bluray").WithResults(
			mock.Item("Dune", "", 2021, collectable.KindMovie),
		),
		mock.NewAdapter("tmdb_tv").WithResults(
			mock.Item("Breaking Bad", "Vince Gilligan", 2008, collectable.KindTV),
		),
		mock.NewAdapter("igdb").WithResults(
			mock.Item("Hades", "Supergiant Games", 2020, collectable.KindGame),
		),
		mock.NewAdapter("hardcover").WithResults(
			mock.Item("Dune", "Frank Herbert", 1965, collectable.KindBook),
		),
		mock.NewAdapter("openlibrary").WithResults(
			mock.Item("Dune", "Frank Herbert", 1965, collectable.KindBook),
			mock.Item("Dune Messiah", "Frank Herbert", 1969, collectable.KindBook),
		),
		mock.NewAdapter("nytbooks"),
		mock.NewAdapter("musicbrainz").WithResults(
			mock.Item("Kind of Blue", "Miles Davis", 1959, collectable.KindAlbum),
		),
	}

	out := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}
