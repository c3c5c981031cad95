// Package musicbrainz implements the album adapter backed by the MusicBrainz
// web service and the Cover Art Archive.
package musicbrainz

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	ProviderName = "musicbrainz"

	// MusicBrainz blocks clients exceeding one request per second.
	rateRequests = 1
	rateWindow   = time.Second
)

// SearchResponse is the release-group search response.
type SearchResponse struct {
	Count         int            `json:"count"`
	ReleaseGroups []ReleaseGroup `json:"release-groups"`
}

// ReleaseGroup groups every release of one album.
type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Score            int            `json:"score"`
	FirstReleaseDate string         `json:"first-release-date"`
	PrimaryType      string         `json:"primary-type"`
	SecondaryTypes   []string       `json:"secondary-types"`
	ArtistCredit     []ArtistCredit `json:"artist-credit"`
	Releases         []Release      `json:"releases"`
	Tags             []Tag          `json:"tags"`
}

// ArtistCredit is one credited artist.
type ArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// Release is a concrete release inside a group.
type Release struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Tag is a folksonomy tag with its vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

var _ provider.Adapter = (*Adapter)(nil)

// Adapter looks up albums on MusicBrainz.
type Adapter struct {
	config    config.MusicBrainzConfig
	requester *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdapter creates the MusicBrainz adapter.
func NewAdapter(cfg config.MusicBrainzConfig, logger zerolog.Logger) *Adapter {
	return &Adapter{
		config: cfg,
		requester: provider.NewRequester(provider.RequesterConfig{
			Provider:  ProviderName,
			Timeout:   cfg.TimeoutDuration(),
			Retries:   cfg.Retries,
			BaseDelay: cfg.RetryDelay,
			Requests:  rateRequests,
			Every:     rateWindow,
			UserAgent: cfg.UserAgent,
		}, logger),
		logger: logger.With().Str("component", ProviderName).Logger(),
		now:    time.Now,
	}
}

func (a *Adapter) Name() string { return ProviderName }

// IsConfigured requires a User-Agent, which MusicBrainz mandates.
func (a *Adapter) IsConfigured() bool {
	return a.config.BaseURL != "" && a.config.UserAgent != ""
}

// Lookup returns the best album match for criteria.
func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

// LookupMany returns up to limit ranked albums.
func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	query := `releasegroup:"` + escapeLucene(criteria.Title) + `"`
	if artist := criteria.Identifier("artist"); artist != "" {
		query += ` AND artist:"` + escapeLucene(artist) + `"`
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", strconv.Itoa(max(limit, 10)))

	var resp SearchResponse
	err := a.requester.GetJSON(ctx, "search", a.config.BaseURL+"/release-group/?"+params.Encode(), nil, &resp)
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[ReleaseGroup], len(resp.ReleaseGroups))
	for i, rg := range resp.ReleaseGroups {
		candidates[i] = ranking.Candidate[ReleaseGroup]{
			Title:      rg.Title,
			Year:       collectable.ParseYear(rg.FirstReleaseDate),
			Popularity: float64(rg.Score),
			Raw:        rg,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.toCollectable(r.Raw, criteria))
	}
	return out, nil
}

func (a *Adapter) toCollectable(rg ReleaseGroup, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title: rg.Title,
		Year:  collectable.ParseYear(rg.FirstReleaseDate),
		Kind:  collectable.KindAlbum,
	}
	for _, ac := range rg.ArtistCredit {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		c.Creators = append(c.Creators, name)
	}
	if rg.PrimaryType != "" {
		c.Genre = append(c.Genre, rg.PrimaryType)
	}
	c.Genre = append(c.Genre, rg.SecondaryTypes...)
	for _, tag := range rg.Tags {
		if tag.Count > 0 {
			c.Tags = append(c.Tags, tag.Name)
		}
	}
	if criteria.Format != "" {
		c.Formats = append(c.Formats, criteria.Format)
	}
	for _, r := range rg.Releases {
		c.AddIdentifier("musicbrainz_release", r.ID)
	}

	cover := collectable.PickCoverURL("", collectable.ImageSet{
		Large:  a.coverURL(rg.ID, "front-1200"),
		Medium: a.coverURL(rg.ID, "front-500"),
		Small:  a.coverURL(rg.ID, "front-250"),
	})
	if cover != "" {
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = "coverartarchive"
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "cover"})
	}

	c.AddIdentifier(ProviderName, rg.ID)
	c.ExternalID = collectable.ExternalID(ProviderName, rg.ID)
	c.Attribution = &collectable.Attribution{Text: "Data from MusicBrainz", URL: "https://musicbrainz.org"}
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  ProviderName,
		ID:        rg.ID,
		URL:       "https://musicbrainz.org/release-group/" + rg.ID,
		FetchedAt: a.now(),
	})

	collectable.Finalize(c)
	return c
}

// coverURL points at the Cover Art Archive front image of a release group.
// The archive answers 404 when the group has no art.
func (a *Adapter) coverURL(releaseGroupID, size string) string {
	if releaseGroupID == "" || a.config.CoverArtURL == "" {
		return ""
	}
	return a.config.CoverArtURL + "/release-group/" + releaseGroupID + "/" + size
}

var luceneReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeLucene(s string) string {
	return luceneReplacer.Replace(s)
}
