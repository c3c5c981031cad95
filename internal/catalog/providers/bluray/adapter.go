// Package bluray implements the disc release adapter that scrapes
// Blu-ray.com search results and release calendars.
package bluray

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/catalog/ranking"
	"github.com/shelfwise/shelfwise/internal/collectable"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	ProviderName = "bluray"

	rateRequests = 1
	rateWindow   = time.Second

	defaultFormat = "Blu-ray"
)

var (
	titleYearPattern = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)
	discIDPattern    = regexp.MustCompile(`/(\d+)/?$`)
)

// Release is one row scraped from a results or calendar table.
type Release struct {
	ID       string
	Title    string
	Year     int
	URL      string
	Date     string
	ImageURL string
	Format   string
}

var (
	_ provider.Adapter    = (*Adapter)(nil)
	_ provider.Discoverer = (*Adapter)(nil)
)

// Adapter looks up disc releases on Blu-ray.com.
type Adapter struct {
	config    config.BlurayConfig
	requester *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdapter creates the Blu-ray.com adapter.
func NewAdapter(cfg config.BlurayConfig, logger zerolog.Logger) *Adapter {
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

// IsConfigured only needs a base URL; the site takes no credentials.
func (a *Adapter) IsConfigured() bool { return a.config.BaseURL != "" }

// Lookup returns the best release match for criteria.
func (a *Adapter) Lookup(ctx context.Context, criteria collectable.SearchCriteria) (*collectable.Collectable, error) {
	results, err := a.LookupMany(ctx, criteria, 1)
	if err != nil {
		return nil, err
	}
	return provider.First(results), nil
}

// LookupMany returns up to limit ranked releases.
func (a *Adapter) LookupMany(ctx context.Context, criteria collectable.SearchCriteria, limit int) ([]collectable.Collectable, error) {
	if !criteria.Valid() || !a.IsConfigured() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("quicksearch", "1")
	params.Set("quicksearch_country", a.country())
	params.Set("quicksearch_keyword", criteria.Title)
	params.Set("section", "bluraymovies")

	releases, err := a.scrape(ctx, "search", "/search/?"+params.Encode())
	if err != nil {
		return nil, provider.Resolve(a.logger, err)
	}

	candidates := make([]ranking.Candidate[Release], len(releases))
	for i, r := range releases {
		candidates[i] = ranking.Candidate[Release]{
			Title:    r.Title,
			Year:     r.Year,
			HasImage: r.ImageURL != "",
			Raw:      r,
		}
	}

	ranked := ranking.Top(candidates, criteria, limit)
	out := make([]collectable.Collectable, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *a.toCollectable(r.Raw, criteria.Format))
	}
	return out, nil
}

// Discover returns the release calendar for q.Year and q.Month, defaulting to
// the current month.
func (a *Adapter) Discover(ctx context.Context, q provider.DiscoverQuery) ([]collectable.Collectable, error) {
	now := a.now()
	year, month := q.Year, q.Month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	return a.releaseCalendar(ctx, year, month)
}

func (a *Adapter) releaseCalendar(ctx context.Context, year int, month time.Month) ([]collectable.Collectable, error) {
	params := url.Values{}
	params.Set("year", fmt.Sprintf("%d", year))
	params.Set("month", fmt.Sprintf("%d", int(month)))
	params.Set("country", a.country())

	releases, err := a.scrape(ctx, "calendar", "/movies/releasedates.php?"+params.Encode())
	if err != nil {
		return nil, err
	}

	out := make([]collectable.Collectable, 0, len(releases))
	for _, r := range releases {
		out = append(out, *a.toCollectable(r, ""))
	}
	return out, nil
}

func (a *Adapter) scrape(ctx context.Context, operation, path string) ([]Release, error) {
	body, err := a.requester.GetBody(ctx, operation, a.config.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	releases, err := ParseReleases(body, a.config.BaseURL)
	if err != nil {
		return nil, provider.NewError(provider.KindUnexpected, ProviderName, 200, "failed to parse HTML", err)
	}

	a.logger.Debug().
		Str("operation", operation).
		Int("results", len(releases)).
		Msg("Scrape completed")

	return releases, nil
}

// ParseReleases extracts release rows from a results or calendar page. A row
// is any table row linking to a movie page; the link gives title and href,
// the last cell the release date.
func ParseReleases(html []byte, baseURL string) ([]Release, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var releases []Release
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find(`a[href*="/movies/"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) != "" || attr(s, "title") != ""
		}).First()
		if link.Length() == 0 {
			return
		}

		href := resolveURL(baseURL, attr(link, "href"))
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		rawTitle := attr(link, "title")
		if rawTitle == "" {
			rawTitle = strings.TrimSpace(link.Text())
		}
		title, year := splitTitleYear(rawTitle)

		cells := row.Find("td")
		date := ""
		if cells.Length() > 1 {
			date = strings.TrimSpace(cells.Last().Text())
		}
		if year == 0 {
			year = collectable.ParseYear(date)
		}

		release := Release{
			Title:    title,
			Year:     year,
			URL:      href,
			Date:     date,
			ImageURL: resolveURL(baseURL, attr(row.Find("img").First(), "src")),
			Format:   formatFromTitle(rawTitle + " " + href),
		}
		if m := discIDPattern.FindStringSubmatch(href); m != nil {
			release.ID = m[1]
		}
		releases = append(releases, release)
	})

	return releases, nil
}

func (a *Adapter) toCollectable(r Release, format string) *collectable.Collectable {
	c := &collectable.Collectable{
		Title: r.Title,
		Year:  r.Year,
		Kind:  collectable.KindMovie,
	}
	if format == "" {
		format = r.Format
	}
	c.Formats = append(c.Formats, format)
	if r.Date != "" {
		c.Tags = append(c.Tags, "release:"+r.Date)
	}

	if r.ImageURL != "" {
		cover := collectable.PickCoverURL("", collectable.ImageSet{
			Large:  strings.Replace(r.ImageURL, "_small.", "_large.", 1),
			Medium: strings.Replace(r.ImageURL, "_small.", "_medium.", 1),
			Small:  r.ImageURL,
		})
		c.CoverURL = cover
		c.CoverImageURL = cover
		c.CoverImageSource = ProviderName
		c.Images = append(c.Images, collectable.Image{URL: cover, Kind: "cover"})
	}

	id := r.ID
	if id == "" {
		id = r.URL
	}
	c.AddIdentifier(ProviderName, id)
	c.ExternalID = collectable.ExternalID(ProviderName, id)
	c.Sources = append(c.Sources, collectable.Source{
		Provider:  ProviderName,
		ID:        id,
		URL:       r.URL,
		FetchedAt: a.now(),
	})

	collectable.Finalize(c)
	return c
}

func (a *Adapter) country() string {
	if a.config.Country == "" {
		return "US"
	}
	return strings.ToUpper(a.config.Country)
}

func splitTitleYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if m := titleYearPattern.FindStringSubmatch(s); m != nil {
		return cleanTitle(m[1]), collectable.ParseYear(m[2])
	}
	return cleanTitle(s), 0
}

// cleanTitle drops the disc format suffix the site appends to titles.
func cleanTitle(s string) string {
	for _, suffix := range []string{" 4K Blu-ray", " Blu-ray", " DVD"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}

func formatFromTitle(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "4k"):
		return "4K Blu-ray"
	case strings.Contains(lower, "dvd"):
		return "DVD"
	default:
		return defaultFormat
	}
}

func attr(s *goquery.Selection, name string) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func resolveURL(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
