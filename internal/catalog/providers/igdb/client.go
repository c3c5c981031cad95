// Package igdb implements the video game catalog adapter backed by the IGDB
// API, authenticated through Twitch client credentials.
package igdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/config"
)

const (
	// IGDB allows 4 requests per second.
	rateRequests = 4
	rateWindow   = time.Second

	// Tokens are refreshed this long before they expire.
	tokenRefreshMargin = 60 * time.Second

	gameFields = "name,summary,storyline,first_release_date,total_rating_count,rating,url," +
		"cover.image_id,genres.name,themes.name,keywords.name,platforms.name," +
		"involved_companies.company.name,involved_companies.developer,involved_companies.publisher"
)

// Client is an IGDB API client with an in-memory OAuth token cache.
type Client struct {
	config    config.IGDBConfig
	requester *provider.Requester
	auth      *provider.Requester
	logger    zerolog.Logger
	now       func() time.Time

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new IGDB client.
func NewClient(cfg config.IGDBConfig, logger zerolog.Logger) *Client {
	rc := provider.RequesterConfig{
		Provider:  ProviderName,
		Timeout:   cfg.TimeoutDuration(),
		Retries:   cfg.Retries,
		BaseDelay: cfg.RetryDelay,
		Requests:  rateRequests,
		Every:     rateWindow,
	}
	requester := provider.NewRequester(rc, logger)

	// Token exchanges go to Twitch, not IGDB, so they skip the IGDB bucket.
	rc.Requests = 0
	auth := provider.NewRequester(rc, logger)

	return &Client{
		config:    cfg,
		requester: requester,
		auth:      auth,
		logger:    logger.With().Str("component", ProviderName).Logger(),
		now:       time.Now,
	}
}

// IsConfigured returns true if the client id and secret are set.
func (c *Client) IsConfigured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

// SearchGames runs a full-text search.
func (c *Client) SearchGames(ctx context.Context, query string, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 10
	}
	body := fmt.Sprintf("search %s; fields %s; where version_parent = null; limit %d;", quote(query), gameFields, limit)

	var games []Game
	if err := c.query(ctx, "search_games", "/games", body, &games); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(games)).
		Msg("Game search completed")

	return games, nil
}

// GetGame fetches a game by IGDB id.
func (c *Client) GetGame(ctx context.Context, id int) (*Game, error) {
	body := fmt.Sprintf("fields %s; where id = %d; limit 1;", gameFields, id)

	var games []Game
	if err := c.query(ctx, "game", "/games", body, &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, provider.NewError(provider.KindNotFound, ProviderName, http.StatusNotFound, fmt.Sprintf("game %d not found", id), nil)
	}
	return &games[0], nil
}

// query posts an APIcalypse query, refreshing the token and retrying once
// when IGDB rejects it.
func (c *Client) query(ctx context.Context, operation, path, body string, out any) error {
	if !c.IsConfigured() {
		return provider.ErrNotConfigured
	}

	err := c.post(ctx, operation, path, body, out)
	if !errors.Is(err, provider.ErrUnauthorized) {
		return err
	}

	c.logger.Debug().Msg("IGDB rejected token, refreshing")
	c.invalidateToken()
	return c.post(ctx, operation, path, body, out)
}

func (c *Client) post(ctx context.Context, operation, path, body string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Client-ID", c.config.ClientID)
	header.Set("Authorization", "Bearer "+token)
	header.Set("Content-Type", "text/plain")

	return c.requester.PostJSON(ctx, operation, c.config.BaseURL+path, header, []byte(body), out)
}

// accessToken returns a cached token, exchanging client credentials when it
// is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.tokenValid() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.tokenValid() {
		return c.token, nil
	}

	params := url.Values{}
	params.Set("client_id", c.config.ClientID)
	params.Set("client_secret", c.config.ClientSecret)
	params.Set("grant_type", "client_credentials")

	var resp TokenResponse
	if err := c.auth.PostJSON(ctx, "token", c.config.TokenURL+"?"+params.Encode(), nil, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to obtain IGDB token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", provider.NewError(provider.KindUnauthorized, ProviderName, 0, "token response without access_token", nil)
	}

	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	c.logger.Debug().Time("expires", c.tokenExpiry).Msg("IGDB authentication successful")
	return c.token, nil
}

// tokenValid must be called with mu held.
func (c *Client) tokenValid() bool {
	return c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.tokenExpiry)
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
