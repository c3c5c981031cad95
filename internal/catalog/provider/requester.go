package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/shelfwise/shelfwise/internal/catalog/retry"
)

const (
	DefaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4 << 10
)

// RequesterConfig configures the HTTP plumbing of one adapter.
type RequesterConfig struct {
	Provider  string
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	// Requests per Every, zero disables throttling.
	Requests  int
	Every     time.Duration
	UserAgent string
	Client    *http.Client
}

// Requester performs upstream calls for one adapter: it waits for a token
// bucket slot, applies a per-attempt timeout, classifies failures and
// retries through the shared policy.
type Requester struct {
	provider  string
	client    *http.Client
	limiter   *rate.Limiter
	policy    retry.Policy
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
}

// NewRequester creates a requester. Zero values fall back to package defaults.
func NewRequester(cfg RequesterConfig, logger zerolog.Logger) *Requester {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = retry.DefaultBaseDelay
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.Requests > 0 && cfg.Every > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Every/time.Duration(cfg.Requests)), cfg.Requests)
	}

	log := logger.With().Str("component", cfg.Provider).Logger()
	return &Requester{
		provider:  cfg.Provider,
		client:    client,
		limiter:   limiter,
		policy:    retry.NewPolicy(cfg.Retries, cfg.BaseDelay, Classify, log),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		logger:    log,
	}
}

// Provider returns the provider name the requester reports errors under.
func (r *Requester) Provider() string {
	return r.provider
}

// RequestBuilder creates a fresh request for one attempt.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Do runs build/send/decode under the retry policy. decode receives the body
// of a 2xx response.
func (r *Requester) Do(ctx context.Context, operation string, build RequestBuilder, decode func(body io.Reader) error) error {
	return r.policy.Do(ctx, r.provider+"."+operation, func(ctx context.Context) error {
		return r.attempt(ctx, build, decode)
	})
}

// GetJSON issues a GET and decodes the JSON response into out.
func (r *Requester) GetJSON(ctx context.Context, operation, url string, header http.Header, out any) error {
	return r.Do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, DecodeJSON(out))
}

// PostJSON issues a POST with a raw body and decodes the JSON response into out.
func (r *Requester) PostJSON(ctx context.Context, operation, url string, header http.Header, body []byte, out any) error {
	return r.Do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, DecodeJSON(out))
}

// GetBody issues a GET and returns the raw response body.
func (r *Requester) GetBody(ctx context.Context, operation, url string, header http.Header) ([]byte, error) {
	var data []byte
	err := r.Do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		return req, nil
	}, func(body io.Reader) error {
		b, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	return data, err
}

// DecodeJSON returns a decoder callback for out.
func DecodeJSON(out any) func(io.Reader) error {
	return func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

func (r *Requester) attempt(ctx context.Context, build RequestBuilder, decode func(io.Reader) error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return NewError(KindUnexpected, r.provider, 0, "failed to create request", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsTransientError(err) {
			return NewError(KindTransient, r.provider, 0, "HTTP request failed", err)
		}
		r.logger.Error().Err(err).Str("url", req.URL.Redacted()).Msg("HTTP request failed")
		return NewError(KindUnexpected, r.provider, 0, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		message := strings.TrimSpace(string(raw))
		kind := KindForStatus(resp.StatusCode, message)
		if kind != KindNotFound {
			r.logger.Error().
				Int("status", resp.StatusCode).
				Str("kind", string(kind)).
				Str("message", truncate(message, 200)).
				Msg("upstream API error")
		}
		return NewError(kind, r.provider, resp.StatusCode, truncate(message, 200), nil)
	}

	if err := decode(resp.Body); err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return NewError(KindTransient, r.provider, resp.StatusCode, "response read timed out", err)
		}
		var perr *Error
		if errors.As(err, &perr) {
			return err
		}
		return NewError(KindUnexpected, r.provider, resp.StatusCode, "malformed response", err)
	}
	return nil
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
