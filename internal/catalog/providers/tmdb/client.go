// Package tmdb implements the movie and TV catalog adapters backed by The
// Movie Database API.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	// TMDB allows roughly 40 requests per 10 seconds per key.
	rateRequests = 35
	rateWindow   = 10 * time.Second

	defaultImageBaseURL = "https://image.tmdb.org/t/p"
)

// Client is a TMDB API client shared by the movie and TV adapters.
type Client struct {
	config    config.TMDBConfig
	requester *provider.Requester
	logger    zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = defaultImageBaseURL
	}
	return &Client{
		config: cfg,
		requester: provider.NewRequester(provider.RequesterConfig{
			Provider:  "tmdb",
			Timeout:   cfg.TimeoutDuration(),
			Retries:   cfg.Retries,
			BaseDelay: cfg.RetryDelay,
			Requests:  rateRequests,
			Every:     rateWindow,
		}, logger),
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SearchMovies searches for movies by query with optional year filter.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]MovieResult, error) {
	params := c.params()
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchMoviesResponse
	if err := c.get(ctx, "search_movie", "/search/movie", params, &response); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(response.Results)).
		Msg("Movie search completed")

	return response.Results, nil
}

// GetMovie gets detailed movie info by TMDB ID, including credits and keywords.
func (c *Client) GetMovie(ctx context.Context, id int) (*MovieDetails, error) {
	params := c.params()
	params.Set("append_to_response", "credits,keywords")

	var details MovieDetails
	if err := c.get(ctx, "movie", fmt.Sprintf("/movie/%d", id), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// SearchTV searches for TV series by query with optional first-air year filter.
func (c *Client) SearchTV(ctx context.Context, query string, year int) ([]TVResult, error) {
	params := c.params()
	params.Set("query", query)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var response SearchTVResponse
	if err := c.get(ctx, "search_tv", "/search/tv", params, &response); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(response.Results)).
		Msg("TV search completed")

	return response.Results, nil
}

// GetTV gets detailed series info by TMDB ID, including external ids and keywords.
func (c *Client) GetTV(ctx context.Context, id int) (*TVDetails, error) {
	params := c.params()
	params.Set("append_to_response", "external_ids,keywords")

	var details TVDetails
	if err := c.get(ctx, "tv", fmt.Sprintf("/tv/%d", id), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// ImageURL builds a full image URL for a poster path at the given size.
func (c *Client) ImageURL(path *string, size string) string {
	if path == nil || *path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, *path)
}

func (c *Client) params() url.Values {
	params := url.Values{}
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}
	return params
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	if !c.IsConfigured() {
		return provider.ErrNotConfigured
	}

	endpoint := c.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.APIKey)

	return c.requester.GetJSON(ctx, operation, endpoint, header, out)
}
