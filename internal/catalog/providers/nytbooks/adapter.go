// Package nytbooks implements the book discovery adapter backed by the New
// York Times Books API best-seller lists.
package nytbooks

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	ProviderName = "nytbooks"

	// The NYT API allows 5 requests per minute and 500 per day.
	rateRequests = 5
	rateWindow   = time.Minute

	defaultList = "hardcover-fiction"
)

// HistoryResponse is the best-seller history search response.
type HistoryResponse struct {
	Status     string         `json:"status"`
	NumResults int            `json:"num_results"`
	Results    []HistoryEntry `json:"results"`
}

// HistoryEntry is one title that has appeared on a best-seller list.
type HistoryEntry struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Contributor  string        `json:"contributor"`
	Author       string        `json:"author"`
	Publisher    string        `json:"publisher"`
	ISBNs        []ISBN        `json:"isbns"`
	RanksHistory []RankHistory `json:"ranks_history"`
}

// ISBN pairs the two ISBN forms of one edition.
type ISBN struct {
	ISBN10 string `json:"isbn10"`
	ISBN13 string `json:"isbn13"`
}

// RankHistory is one appearance on a list.
type RankHistory struct {
	ListName        string `json:"display_name"`
	PublishedDate   string `json:"published_date"`
	BestsellersDate string `json:"bestsellers_date"`
	Rank            int    `json:"rank"`
	WeeksOnList     int    `json:"weeks_on_list"`
	PrimaryISBN13   string `json:"primary_isbn13"`
}

// ListResponse is the current best-seller list response.
type ListResponse struct {
	Status  string `json:"status"`
	Results struct {
		ListName      string     `json:"list_name"`
		DisplayName   string     `json:"display_name"`
		PublishedDate string     `json:"published_date"`
		Books         []ListBook `json:"books"`
	} `json:"results"`
}

// ListBook is one entry on a current list.
type ListBook struct {
	Rank          int    `json:"rank"`
	WeeksOnList   int    `json:"weeks_on_list"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	Description   string `json:"description"`
	PrimaryISBN10 string `json:"primary_isbn10"`
	PrimaryISBN13 string `json:"primary_isbn13"`
	BookImage     string `json:"book_image"`
	AmazonURL     string `json:"amazon_product_url"`
}

var (
	_ provider.Adapter    = (*Adapter)(nil)
	_ provider.Discoverer = (*Adapter)(nil)
)

// Adapter looks up books on the NYT best-seller lists.
type Adapter struct {
	config    config.NYTBooksConfig
	requester *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdapter creates the NYT Books adapter.
func NewAdapter(cfg config.NYTBooksConfig, logger zerolog.Logger) *Adapter {
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
func (a *Adapter) IsConfigured() bool { return a.config.APIKey != "" }

// Lookup returns the best best-seller match for criteria.
func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

// LookupMany returns up to limit ranked best-sellers.
func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	params := a.params()
	if isbn := criteria.Identifier("isbn"); isbn != "" {
		params.Set("isbn", isbn)
	} else {
		params.Set("title", criteria.Title)
	}

	var resp HistoryResponse
	err := a.requester.GetJSON(ctx, "history", a.config.BaseURL+"/lists/best-sellers/history.json?"+params.Encode(), nil, &resp)
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[HistoryEntry], len(resp.Results))
	for i, e := range resp.Results {
		weeks := 0
		for _, rh := range e.RanksHistory {
			weeks += rh.WeeksOnList
		}
		candidates[i] = ranking.Candidate[HistoryEntry]{
			Title:      e.Title,
			Year:       firstListedYear(e.RanksHistory),
			Popularity: float64(weeks),
			Raw:        e,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.fromHistory(r.Raw, r.Year, criteria))
	}
	return out, nil
}

// Discover returns the books on the current best-seller list named by q.List,
// hardcover fiction by default.
func (a *Adapter) Discover(ctx context.Context, q provider.DiscoverQuery) ([]collectable.Collectable, error) {
	list := q.List
	if list == "" {
		list = defaultList
	}
	return a.currentList(ctx, list)
}

func (a *Adapter) currentList(ctx context.Context, list string) ([]collectable.Collectable, error) {
	if !a.IsConfigured() {
		return nil, provider.ErrNotConfigured
	}

	var resp ListResponse
	endpoint := a.config.BaseURL + "/lists/current/" + url.PathEscape(list) + ".json?" + a.params().Encode()
	if err := a.requester.GetJSON(ctx, "list", endpoint, nil, &resp); err != nil {
		return nil, err
	}

	year := collectable.ParseYear(resp.Results.PublishedDate)
	out := make([]collectable.Collectable, 0, len(resp.Results.Books))
	for _, b := range resp.Results.Books {
		c := &collectable.Collectable{
			Title:       titleCase(b.Title),
			Year:        year,
			Kind:        collectable.KindBook,
			Description: b.Description,
			Creators:    splitAuthors(b.Author),
			Publishers:  []string{b.Publisher},
			Tags:        []string{resp.Results.DisplayName},
		}
		c.AddIdentifier("isbn10", b.PrimaryISBN10)
		c.AddIdentifier("isbn13", b.PrimaryISBN13)
		if b.BookImage != "" {
			c.CoverURL = collectable.PickCoverURL("", collectable.ImageSet{URL: b.BookImage})
			c.CoverImageURL = c.CoverURL
			c.CoverImageSource = ProviderName
			c.Images = append(c.Images, collectable.Image{URL: b.BookImage, Kind: "cover"})
		}
		a.finish(c, b.PrimaryISBN13, b.AmazonURL)
		out = append(out, *c)
	}
	return out, nil
}

func (a *Adapter) fromHistory(e HistoryEntry, year int, criteria collectable.SearchCriteria) *collectable.Collectable {
	c := &collectable.Collectable{
		Title:       titleCase(e.Title),
		Year:        year,
		Kind:        collectable.KindBook,
		Description: e.Description,
		Creators:    splitAuthors(e.Author),
		Publishers:  []string{e.Publisher},
	}
	if criteria.Format != "" {
		c.Formats = append(c.Formats, criteria.Format)
	}
	for _, isbn := range e.ISBNs {
		c.AddIdentifier("isbn10", isbn.ISBN10)
		c.AddIdentifier("isbn13", isbn.ISBN13)
	}
	for _, rh := range e.RanksHistory {
		c.Tags = append(c.Tags, rh.ListName)
	}

	id := ""
	if isbns := c.Identifiers["isbn13"]; len(isbns) > 0 {
		id = isbns[0]
	}
	a.finish(c, id, "")
	return c
}

func (a *Adapter) finish(c *collectable.Collectable, id, sourceURL string) {
	if id != "" {
		c.AddIdentifier(ProviderName, id)
		c.ExternalID = collectable.ExternalID(ProviderName, id)
	}
	c.Attribution = &collectable.Attribution{
		Text: "Data provided by The New York Times",
		URL:  "https://developer.nytimes.com",
	}
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  ProviderName,
		ID:        id,
		URL:       sourceURL,
		FetchedAt: a.now(),
	})
	collectable.Finalize(c)
}

func (a *Adapter) params() url.Values {
	params := url.Values{}
	params.Set("api-key", a.config.APIKey)
	return params
}

// firstListedYear is the year of the earliest list appearance.
func firstListedYear(history []RankHistory) int {
	dates := make([]string, 0, len(history))
	for _, rh := range history {
		if rh.BestsellersDate != "" {
			dates = append(dates, rh.BestsellersDate)
		} else if rh.PublishedDate != "" {
			dates = append(dates, rh.PublishedDate)
		}
	}
	if len(dates) == 0 {
		return 0
	}
	sort.Strings(dates)
	return collectable.ParseYear(dates[0])
}

// splitAuthors splits "A and B" / "A with B" bylines.
func splitAuthors(byline string) []string {
	byline = strings.TrimSpace(byline)
	if byline == "" {
		return nil
	}
	replacer := strings.NewReplacer(" and ", ",", " with ", ",", ";", ",")
	parts := strings.Split(replacer.Replace(byline), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// titleCase turns the API's upper-case titles into title case.
func titleCase(s string) string {
	if s != strings.ToUpper(s) {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
