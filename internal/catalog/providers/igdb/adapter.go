package igdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

const (
	ProviderName = "igdb"

	imageBaseURL = "https://images.igdb.com/igdb/image/upload"
)

var _ provider.Adapter = (*Adapter)(nil)

// Adapter looks up video games.
type Adapter struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates the game adapter.
func NewAdapter(client *Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger.With().Str("component", ProviderName).Logger(),
		now:    time.Now,
	}
}

func (a *Adapter) Name() string       { return ProviderName }
func (a *Adapter) IsConfigured() bool { return a.client.IsConfigured() }

// Lookup returns the best game match for criteria.
func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	if raw := criteria.Identifier(ProviderName); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			game, err := a.client.GetGame(ctx, id)
			if err != nil {
				return nil, provider.Resolve(a.logger, err)
			}
			return a.toCollectable(*game, criteria), nil
		}
	}

	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

// LookupMany returns up to limit ranked games.
func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	// Fetch a wider page than requested so ranking has something to choose from.
	games, err := a.client.SearchGames(ctx, criteria.Title, max(limit, 10))
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[Game], len(games))
	for i, g := range games {
		candidates[i] = ranking.Candidate[Game]{
			Title:     g.Name,
			Year:      releaseYear(g.FirstReleaseDate),
			VoteCount: g.TotalRatingCount,
			HasImage:  g.Cover != nil && g.Cover.ImageID != "",
			Raw:       g,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.toCollectable(r.Raw, criteria))
	}
	return out, nil
}

func (a *Adapter) toCollectable(g Game, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       g.Name,
		Year:        releaseYear(g.FirstReleaseDate),
		Kind:        collectable.KindGame,
		Description: g.Summary,
	}
	if c.Description == "" {
		c.Description = g.Storyline
	}

	for _, ic := range g.InvolvedCompanies {
		if ic.Developer {
			c.Creators = append(c.Creators, ic.Company.Name)
		}
		if ic.Publisher {
			c.Publishers = append(c.Publishers, ic.Company.Name)
		}
	}
	for _, genre := range g.Genres {
		c.Genre = append(c.Genre, genre.Name)
	}
	for _, theme := range g.Themes {
		c.Tags = append(c.Tags, theme.Name)
	}
	for _, kw := range g.Keywords {
		c.Tags = append(c.Tags, kw.Name)
	}
	for _, p := range g.Platforms {
		c.Formats = append(c.Formats, p.Name)
	}
	c.SystemName = systemName(g.Platforms, criteria.Format)

	if g.Cover != nil && g.Cover.ImageID != "" {
		cover := collectable.PickCoverURL("", collectable.ImageSet{
			Large:  imageURL("t_1080p", g.Cover.ImageID),
			Medium: imageURL("t_cover_big", g.Cover.ImageID),
			Small:  imageURL("t_cover_small", g.Cover.ImageID),
		})
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = ProviderName
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "cover"})
	}

	id := strconv.Itoa(g.ID)
	c.AddIdentifier(ProviderName, id)
	c.ExternalID = collectable.ExternalID(ProviderName, id)
	c.Attribution = &collectable.Attribution{Text: "Game data provided by IGDB.com", URL: "https://www.igdb.com"}
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  ProviderName,
		ID:        id,
		URL:       g.URL,
		FetchedAt: a.now(),
	})

	collectable.Finalize(c)
	return c
}

// systemName prefers the platform the caller asked for, then the first listed.
func systemName(platforms []Named, format string) string {
	if format != "" {
		want := collectable.NormalizeText(format)
		for _, p := range platforms {
			if strings.Contains(collectable.NormalizeText(p.Name), want) {
				return p.Name
			}
		}
	}
	if len(platforms) > 0 {
		return platforms[0].Name
	}
	return ""
}

func releaseYear(unix int64) int {
	if unix == 0 {
		return 0
	}
	return time.Unix(unix, 0).UTC().Year()
}

func imageURL(size, imageID string) string {
	return imageBaseURL + "/" + size + "/" + imageID + ".jpg"
}
