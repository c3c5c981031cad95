// Package hardcover implements the book adapter backed by the Hardcover
// GraphQL API.
package hardcover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	ProviderName = "hardcover"

	rateRequests = 60
	rateWindow   = time.Minute

	searchQuery = `query SearchBooks($query: String!, $perPage: Int!) {
  search(query: $query, query_type: "Book", per_page: $perPage, page: 1) {
    results
  }
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// SearchResponse is the GraphQL envelope of a book search.
type SearchResponse struct {
	Data struct {
		Search struct {
			Results SearchResults `json:"results"`
		} `json:"search"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// SearchResults is the search index payload embedded in the response.
type SearchResults struct {
	Found int   `json:"found"`
	Hits  []Hit `json:"hits"`
}

// Hit wraps one indexed book.
type Hit struct {
	Document Book `json:"document"`
}

// Book is a book document from the Hardcover search index.
type Book struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle"`
	Description  string   `json:"description"`
	AuthorNames  []string `json:"author_names"`
	ReleaseYear  int      `json:"release_year"`
	ISBNs        []string `json:"isbns"`
	Genres       []string `json:"genres"`
	Moods        []string `json:"moods"`
	Pages        int      `json:"pages"`
	UsersCount   int      `json:"users_count"`
	RatingsCount int      `json:"ratings_count"`
	Image        *Image   `json:"image"`
}

// Image is a Hardcover cover image.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var _ provider.Adapter = (*Adapter)(nil)

// Adapter looks up books on Hardcover.
type Adapter struct {
	config    config.HardcoverConfig
	requester *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdapter creates the Hardcover adapter.
func NewAdapter(cfg config.HardcoverConfig, logger zerolog.Logger) *Adapter {
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

func (a *Adapter) Name() string       { return ProviderName }
func (a *Adapter) IsConfigured() bool { return a.config.Token != "" }

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

	query := criteria.Title
	if isbn := criteria.Identifier("isbn"); isbn != "" {
		query = isbn
	}

	books, err := a.search(ctx, query, max(limit, 10))
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[Book], len(books))
	for i, b := range books {
		candidates[i] = ranking.Candidate[Book]{
			Title:      b.Title,
			Year:       b.ReleaseYear,
			Popularity: float64(b.UsersCount),
			VoteCount:  b.RatingsCount,
			HasImage:   b.Image != nil && b.Image.URL != "",
			Raw:        b,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.toCollectable(r.Raw, criteria))
	}
	return out, nil
}

func (a *Adapter) search(ctx context.Context, query string, perPage int) ([]Book, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:     searchQuery,
		Variables: map[string]any{"query": query, "perPage": perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", a.authorization())
	header.Set("Accept", "application/json")

	var resp SearchResponse
	err = a.requester.Do(ctx, "search", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header = header.Clone()
		return req, nil
	}, func(r io.Reader) error {
		resp = SearchResponse{}
		if err := provider.DecodeJSON(&resp)(r); err != nil {
			return err
		}
		// GraphQL reports failures, throttling included, inside a 200.
		if len(resp.Errors) > 0 {
			message := resp.Errors[0].Message
			kind := provider.KindUnexpected
			if provider.IsRateLimitMessage(message) {
				kind = provider.KindRateLimited
			}
			return provider.NewError(kind, ProviderName, http.StatusOK, message, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hits := resp.Data.Search.Results.Hits
	books := make([]Book, 0, len(hits))
	for _, h := range hits {
		books = append(books, h.Document)
	}

	a.logger.Debug().
		Str("query", query).
		Int("results", len(books)).
		Msg("Book search completed")

	return books, nil
}

// authorization accepts tokens pasted with or without the scheme prefix.
func (a *Adapter) authorization() string {
	token := strings.TrimSpace(a.config.Token)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func (a *Adapter) toCollectable(b Book, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       b.Title,
		Subtitle:    b.Subtitle,
		Year:        b.ReleaseYear,
		Kind:        collectable.KindBook,
		Description: b.Description,
		Creators:    b.AuthorNames,
		Genre:       b.Genres,
		Tags:        b.Moods,
	}
	if criteria.Format != "" {
		c.Formats = append(c.Formats, criteria.Format)
	}
	for _, isbn := range b.ISBNs {
		switch len(isbn) {
		case 13:
			c.AddIdentifier("isbn13", isbn)
		case 10:
			c.AddIdentifier("isbn10", isbn)
		}
	}

	if b.Image != nil && b.Image.URL != "" {
		cover := collectable.PickCoverURL("", collectable.ImageSet{URL: b.Image.URL})
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = ProviderName
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "cover", Width: b.Image.Width, Height: b.Image.Height})
	}

	id := b.ID
	if id == "" && b.Slug != "" {
		id = b.Slug
	}
	c.AddIdentifier(ProviderName, id)
	c.ExternalID = collectable.ExternalID(ProviderName, id)
	source := collectable.Source{Provider: ProviderName, ID: id, FetchedAt: a.now()}
	if b.Slug != "" {
		source.URL = "https://hardcover.app/books/" + b.Slug
	}
	c.Sources = append(c.Sources, source)

	collectable.Finalize(c)
	return c
}
