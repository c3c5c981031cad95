// Package openlibrary implements the credential-free book adapter backed by
// the OpenLibrary search API.
package openlibrary

import (
	"context"
	"fmt"
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
	ProviderName = "openlibrary"

	rateRequests = 3
	rateWindow   = time.Second

	searchFields = "key,title,subtitle,author_name,first_publish_year,publisher,isbn,subject,cover_i,edition_count,ratings_count,number_of_pages_median"
)

// SearchResponse is the /search.json response.
type SearchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

// Doc is one work in search results.
type Doc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	Publisher           []string `json:"publisher"`
	ISBN                []string `json:"isbn"`
	Subject             []string `json:"subject"`
	CoverID             int      `json:"cover_i"`
	EditionCount        int      `json:"edition_count"`
	RatingsCount        int      `json:"ratings_count"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
}

var _ provider.Adapter = (*Adapter)(nil)

// Adapter looks up books on OpenLibrary.
type Adapter struct {
	config    config.OpenLibraryConfig
	requester *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdapter creates the OpenLibrary adapter.
func NewAdapter(cfg config.OpenLibraryConfig, logger zerolog.Logger) *Adapter {
	return &Adapter{
		config: cfg,
		requester: provider.NewRequester(provider.RequesterConfig{
			Provider:  ProviderName,
			Timeout:   cfg.TimeoutDuration(),
			Retries:   cfg.Retries,
			BaseDelay: cfg.RetryDelay,
			Requests:  rateRequests,
			Every:     rateWindow,
		}, logger),
		logger: logger.With().Str("component", ProviderName).Logger(),
		now:    time.Now,
	}
}

func (a *Adapter) Name() string { return ProviderName }

// IsConfigured only needs a base URL since OpenLibrary takes no credentials.
func (a *Adapter) IsConfigured() bool { return a.config.BaseURL != "" }

// Lookup returns the best book match for criteria.
func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

// LookupMany returns up to limit ranked books.
func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	params := url.Values{}
	if isbn := criteria.Identifier("isbn"); isbn != "" {
		params.Set("isbn", isbn)
	} else {
		params.Set("title", criteria.Title)
		if author := criteria.Identifier("author"); author != "" {
			params.Set("author", author)
		}
	}
	params.Set("fields", searchFields)
	params.Set("limit", strconv.Itoa(max(limit, 10)))

	var resp SearchResponse
	err := a.requester.GetJSON(ctx, "search", a.config.BaseURL+"/search.json?"+params.Encode(), nil, &resp)
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[Doc], len(resp.Docs))
	for i, d := range resp.Docs {
		candidates[i] = ranking.Candidate[Doc]{
			Title:      d.Title,
			Year:       d.FirstPublishYear,
			Popularity: float64(d.EditionCount),
			VoteCount:  d.RatingsCount,
			HasImage:   d.CoverID > 0,
			Raw:        d,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.toCollectable(r.Raw, criteria))
	}
	return out, nil
}

func (a *Adapter) toCollectable(d Doc, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:      d.Title,
		Subtitle:   d.Subtitle,
		Year:       d.FirstPublishYear,
		Kind:       collectable.KindBook,
		Creators:   d.AuthorName,
		Publishers: limitStrings(d.Publisher, 5),
		Tags:       limitStrings(d.Subject, 10),
	}
	if criteria.Format != "" {
		c.Formats = append(c.Formats, criteria.Format)
	}

	for _, isbn := range d.ISBN {
		switch len(isbn) {
		case 13:
			c.AddIdentifier("isbn13", isbn)
		case 10:
			c.AddIdentifier("isbn10", isbn)
		}
	}

	override := ""
	if isbn := criteria.Identifier("isbn"); isbn != "" && d.CoverID == 0 {
		override = a.coverURL("isbn", isbn, "L")
	}
	var set collectable.ImageSet
	if d.CoverID > 0 {
		id := strconv.Itoa(d.CoverID)
		set = collectable.ImageSet{
			Large:  a.coverURL("id", id, "L"),
			Medium: a.coverURL("id", id, "M"),
			Small:  a.coverURL("id", id, "S"),
		}
	}
	if cover := collectable.PickCoverURL(override, set); cover != "" {
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = ProviderName
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "cover"})
	}

	workID := strings.TrimPrefix(d.Key, "/works/")
	c.AddIdentifier(ProviderName, workID)
	c.ExternalID = collectable.ExternalID(ProviderName, workID)
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  ProviderName,
		ID:        workID,
		URL:       a.config.BaseURL + d.Key,
		FetchedAt: a.now(),
	})

	collectable.Finalize(c)
	return c
}

func (a *Adapter) coverURL(kind, value, size string) string {
	return fmt.Sprintf("%s/b/%s/%s-%s.jpg", a.config.CoversURL, kind, value, size)
}

func limitStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
