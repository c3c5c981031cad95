package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shelfwise/shelfwise/internal/catalog/provider"
	"github.com/shelfwise/shelfwise/internal/collectable"
)

// CollectableStore persists lookup results. Implementations are idempotent on
// the fingerprint.
type CollectableStore interface {
	Store(ctx context.Context, c collectable.Collectable) (string, error)
}

// Handlers provides HTTP handlers for catalog operations.
type Handlers struct {
	router *Router
	store  CollectableStore
}

// NewHandlers creates new catalog handlers. store may be nil, in which case
// the collectables endpoint is not registered.
func NewHandlers(router *Router, store CollectableStore) *Handlers {
	return &Handlers{
		router: router,
		store:  store,
	}
}

// RegisterRoutes registers the catalog routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/lookup", h.Lookup)
	g.GET("/search", h.Search)
	g.GET("/providers", h.Providers)
	g.GET("/discover/:provider", h.Discover)
	g.POST("/reload", h.Reload)

	if h.store != nil {
		g.POST("/collectables", h.AddCollectable)
	}
}

// Lookup returns the best match for a title.
// GET /api/v1/catalog/lookup?type=...&title=...&year=...&format=...&mode=...&id=key:value
func (h *Handlers) Lookup(c echo.Context) error {
	containerType, criteria, opts, err := parseLookupQuery(c)
	if err != nil {
		return err
	}

	result, err := h.router.Lookup(c.Request().Context(), criteria, containerType, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no match found")
	}

	return c.JSON(http.StatusOK, result)
}

// Search returns up to limit ranked matches.
// GET /api/v1/catalog/search?type=...&title=...&limit=...
func (h *Handlers) Search(c echo.Context) error {
	containerType, criteria, opts, err := parseLookupQuery(c)
	if err != nil {
		return err
	}

	limit := defaultLookupLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = min(l, 50)
	}

	results, err := h.router.LookupMany(c.Request().Context(), criteria, containerType, limit, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []collectable.Collectable{}
	}

	return c.JSON(http.StatusOK, results)
}

// Providers reports the provider routing state.
// GET /api/v1/catalog/providers?type=...
func (h *Handlers) Providers(c echo.Context) error {
	status := h.router.Status()

	if containerType := c.QueryParam("type"); containerType != "" {
		container, ok := ResolveContainer(containerType)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown container type")
		}
		filtered := make([]ProviderStatus, 0, len(status))
		for _, s := range status {
			if s.Container == container {
				filtered = append(filtered, s)
			}
		}
		status = filtered
	}
	if status == nil {
		status = []ProviderStatus{}
	}

	return c.JSON(http.StatusOK, status)
}

// Discover returns a provider's discovery feed.
// GET /api/v1/catalog/discover/:provider?list=...&year=...&month=...
func (h *Handlers) Discover(c echo.Context) error {
	q := provider.DiscoverQuery{List: c.QueryParam("list")}
	if yearStr := c.QueryParam("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || y <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		q.Year = y
	}
	if monthStr := c.QueryParam("month"); monthStr != "" {
		m, err := strconv.Atoi(monthStr)
		if err != nil || m < 1 || m > 12 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
		}
		q.Month = time.Month(m)
	}

	results, err := h.router.Discover(c.Request().Context(), c.Param("provider"), q)
	switch {
	case errors.Is(err, ErrNoDiscovery):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrProviderDisabled), errors.Is(err, provider.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if results == nil {
		results = []collectable.Collectable{}
	}

	return c.JSON(http.StatusOK, results)
}

// Reload re-reads the provider config.
// POST /api/v1/catalog/reload
func (h *Handlers) Reload(c echo.Context) error {
	if err := h.router.ReloadConfig(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// AddCollectableRequest is the body of the collectables endpoint.
type AddCollectableRequest struct {
	Type     string                     `json:"type"`
	Mode     string                     `json:"mode,omitempty"`
	Criteria collectable.SearchCriteria `json:"criteria"`
}

// AddCollectableResponse returns the stored record and its id.
type AddCollectableResponse struct {
	ID          string                   `json:"id"`
	Collectable *collectable.Collectable `json:"collectable"`
}

// AddCollectable looks up an item and stores the match.
// POST /api/v1/catalog/collectables
func (h *Handlers) AddCollectable(c echo.Context) error {
	var req AddCollectableRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.Criteria.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "criteria.title is required")
	}
	if _, ok := ResolveContainer(req.Type); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown container type")
	}
	var opts LookupOptions
	if req.Mode != "" {
		mode, err := ParseMode(req.Mode)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		opts.Mode = mode
	}

	ctx := c.Request().Context()
	result, err := h.router.Lookup(ctx, req.Criteria, req.Type, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no match found")
	}

	id, err := h.store.Store(ctx, *result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, AddCollectableResponse{ID: id, Collectable: result})
}

func parseLookupQuery(c echo.Context) (string, collectable.SearchCriteria, LookupOptions, error) {
	var criteria collectable.SearchCriteria
	var opts LookupOptions

	containerType := c.QueryParam("type")
	if containerType == "" {
		return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, "type parameter is required")
	}
	if _, ok := ResolveContainer(containerType); !ok {
		return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, "unknown container type")
	}

	criteria.Title = c.QueryParam("title")
	if strings.TrimSpace(criteria.Title) == "" {
		return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, "title parameter is required")
	}
	criteria.Format = c.QueryParam("format")

	if yearStr := c.QueryParam("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		criteria.Year = y
	}

	for _, raw := range c.QueryParams()["id"] {
		key, value, ok := strings.Cut(raw, ":")
		if !ok || key == "" || value == "" {
			return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, "id must be key:value")
		}
		if criteria.Identifiers == nil {
			criteria.Identifiers = make(map[string]string)
		}
		criteria.Identifiers[key] = value
	}

	if modeStr := c.QueryParam("mode"); modeStr != "" {
		mode, err := ParseMode(modeStr)
		if err != nil {
			return "", criteria, opts, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		opts.Mode = mode
	}
	opts.SkipCache = c.QueryParam("skipCache") == "true"

	return containerType, criteria, opts, nil
}
