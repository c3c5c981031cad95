package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

const (
	MovieProviderName = "tmdb"
	TVProviderName    = "tmdb_tv"

	attributionText = "This product uses the TMDB API but is not endorsed or certified by TMDB."
	attributionURL  = "https://www.themoviedb.org"
	attributionLogo = "https://www.themoviedb.org/assets/2/v4/logos/v2/blue_short-8e7b30f73a4020692ccca9c88bafe5dcb6f8a62a4c6bc55cd9ba82bb2cd95f6c.svg"
)

var _ provider.Adapter = (*MovieAdapter)(nil)
var _ provider.Adapter = (*TVAdapter)(nil)

// MovieAdapter looks up movies.
type MovieAdapter struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewMovieAdapter creates the movie adapter.
func NewMovieAdapter(client *Client, logger zerolog.Logger) *MovieAdapter {
	return &MovieAdapter{
		client: client,
		logger: logger.With().Str("component", MovieProviderName).Logger(),
		now:    time.Now,
	}
}

func (a *MovieAdapter) Name() string       { return MovieProviderName }
func (a *MovieAdapter) IsConfigured() bool { return a.client.IsConfigured() }

// Lookup returns the best movie match for criteria.
func (a *MovieAdapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	if id, ok := identifier(criteria, MovieProviderName); ok {
		details, err := a.client.GetMovie(ctx, id)
		if err != nil {
			return nil, provider.Resolve(a.logger, err)
		}
		return a.fromDetails(details, criteria), nil
	}

	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}

	best := &results[0]
	id, _ := strconv.Atoi(best.Identifiers[MovieProviderName][0])
	details, err := a.client.GetMovie(ctx, id)
	if err != nil {
		// The search result is still a usable match.
		if resolved := provider.Resolve(a.logger, err); resolved != nil {
			a.logger.Warn().Err(resolved).Int("id", id).Msg("Failed to fetch movie details, using search result")
		}
		return best, nil
	}
	return a.fromDetails(details, criteria), nil
}

// LookupMany returns up to limit ranked movies.
func (a *MovieAdapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	movies, err := a.client.SearchMovies(ctx, criteria.Title, criteria.Year)
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[MovieResult], len(movies))
	for i, m := range movies {
		candidates[i] = ranking.Candidate[MovieResult]{
			Title:      m.Title,
			Year:       collectable.ParseYear(m.ReleaseDate),
			Popularity: m.Popularity,
			VoteCount:  m.VoteCount,
			HasImage:   m.PosterPath != nil && *m.PosterPath != "",
			Raw:        m,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.fromSearch(r.Raw, criteria))
	}
	return out, nil
}

func (a *MovieAdapter) fromSearch(m MovieResult, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       m.Title,
		Year:        collectable.ParseYear(m.ReleaseDate),
		Kind:        collectable.KindMovie,
		Description: m.Overview,
	}
	applyCommon(c, a.client, MovieProviderName, "movie", m.ID, m.PosterPath, m.BackdropPath, criteria, a.now())
	collectable.Finalize(c)
	return c
}

func (a *MovieAdapter) fromDetails(d *MovieDetails, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       d.Title,
		Year:        collectable.ParseYear(d.ReleaseDate),
		Kind:        collectable.KindMovie,
		Description: d.Overview,
		Subtitle:    d.Tagline,
		Runtime:     d.Runtime,
	}
	if d.Credits != nil {
		for _, crew := range d.Credits.Crew {
			if crew.Job == "Director" {
				c.Creators = append(c.Creators, crew.Name)
			}
		}
	}
	for _, pc := range d.ProductionCompanies {
		c.Publishers = append(c.Publishers, pc.Name)
	}
	for _, g := range d.Genres {
		c.Genre = append(c.Genre, g.Name)
	}
	if d.Keywords != nil {
		for _, k := range d.Keywords.Keywords {
			c.Tags = append(c.Tags, k.Name)
		}
	}
	c.AddIdentifier("imdb", d.ImdbID)
	applyCommon(c, a.client, MovieProviderName, "movie", d.ID, d.PosterPath, d.BackdropPath, criteria, a.now())
	collectable.Finalize(c)
	return c
}

// TVAdapter looks up TV series.
type TVAdapter struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewTVAdapter creates the TV adapter.
func NewTVAdapter(client *Client, logger zerolog.Logger) *TVAdapter {
	return &TVAdapter{
		client: client,
		logger: logger.With().Str("component", TVProviderName).Logger(),
		now:    time.Now,
	}
}

func (a *TVAdapter) Name() string       { return TVProviderName }
func (a *TVAdapter) IsConfigured() bool { return a.client.IsConfigured() }

// Lookup returns the best series match for criteria.
func (a *TVAdapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	if id, ok := identifier(criteria, TVProviderName); ok {
		details, err := a.client.GetTV(ctx, id)
		if err != nil {
			return nil, provider.Resolve(a.logger, err)
		}
		return a.fromDetails(details, criteria), nil
	}

	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}

	best := &results[0]
	id, _ := strconv.Atoi(best.Identifiers[TVProviderName][0])
	details, err := a.client.GetTV(ctx, id)
	if err != nil {
		if resolved := provider.Resolve(a.logger, err); resolved != nil {
			a.logger.Warn().Err(resolved).Int("id", id).Msg("Failed to fetch series details, using search result")
		}
		return best, nil
	}
	return a.fromDetails(details, criteria), nil
}

// LookupMany returns up to limit ranked series.
func (a *TVAdapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	// The year filter on TV search is strict, so rank on it instead.
	series, err := a.client.SearchTV(ctx, criteria.Title, 0)
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[TVResult], len(series))
	for i, s := range series {
		candidates[i] = ranking.Candidate[TVResult]{
			Title:      s.Name,
			Year:       collectable.ParseYear(s.FirstAirDate),
			Popularity: s.Popularity,
			VoteCount:  s.VoteCount,
			HasImage:   s.PosterPath != nil && *s.PosterPath != "",
			Raw:        s,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.fromSearch(r.Raw, criteria))
	}
	return out, nil
}

func (a *TVAdapter) fromSearch(s TVResult, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       s.Name,
		Year:        collectable.ParseYear(s.FirstAirDate),
		Kind:        collectable.KindTV,
		Description: s.Overview,
	}
	applyCommon(c, a.client, TVProviderName, "tv", s.ID, s.PosterPath, s.BackdropPath, criteria, a.now())
	collectable.Finalize(c)
	return c
}

func (a *TVAdapter) fromDetails(d *TVDetails, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       d.Name,
		Year:        collectable.ParseYear(d.FirstAirDate),
		Kind:        collectable.KindTV,
		Description: d.Overview,
		Subtitle:    d.Tagline,
	}
	if len(d.EpisodeRunTime) > 0 {
		c.Runtime = d.EpisodeRunTime[0]
	}
	for _, cb := range d.CreatedBy {
		c.Creators = append(c.Creators, cb.Name)
	}
	for _, n := range d.Networks {
		c.Publishers = append(c.Publishers, n.Name)
	}
	for _, pc := range d.ProductionCompanies {
		c.Publishers = append(c.Publishers, pc.Name)
	}
	for _, g := range d.Genres {
		c.Genre = append(c.Genre, g.Name)
	}
	if d.Keywords != nil {
		for _, k := range d.Keywords.Results {
			c.Tags = append(c.Tags, k.Name)
		}
	}
	if d.ExternalIDs != nil {
		c.AddIdentifier("imdb", d.ExternalIDs.ImdbID)
		if d.ExternalIDs.TvdbID > 0 {
			c.AddIdentifier("tvdb", strconv.Itoa(d.ExternalIDs.TvdbID))
		}
	}
	applyCommon(c, a.client, TVProviderName, "tv", d.ID, d.PosterPath, d.BackdropPath, criteria, a.now())
	collectable.Finalize(c)
	return c
}

// applyCommon fills the fields every TMDB record shares.
func applyCommon(c *collectable.Collectable, client *Client, name, mediaType string, id int, poster, backdrop *string, criteria collectable.SearchCriteria, now time.Time) {
	idStr := strconv.Itoa(id)
	c.AddIdentifier(name, idStr)
	c.ExternalID = collectable.ExternalID(name, idStr)
	if criteria.Format != "" {
		c.Formats = append(c.Formats, criteria.Format)
	}

	cover := collectable.PickCoverURL("", collectable.ImageSet{
		Large:  client.ImageURL(poster, "original"),
		Medium: client.ImageURL(poster, "w500"),
		Small:  client.ImageURL(poster, "w185"),
	})
	if cover != "" {
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = MovieProviderName
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "poster"})
	}
	if b := client.ImageURL(backdrop, "original"); b != "" {
		c.Images = append(c.Images, collectable.Image{URL: b, Kind: "backdrop"})
	}

	c.Attribution = &collectable.Attribution{Text: attributionText, URL: attributionURL, LogoURL: attributionLogo}
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  name,
		ID:        idStr,
		URL:       fmt.Sprintf("https://www.themoviedb.org/%s/%d", mediaType, id),
		FetchedAt: now,
	})
}

func identifier(criteria collectable.SearchCriteria, key string) (int, bool) {
	raw := criteria.Identifier(key)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
