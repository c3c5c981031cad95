// Package api serves the catalog over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/catalog"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/scheduler"
)

// Server handles HTTP requests for the shelfwise API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger

	router *catalog.Router
	store  catalog.CollectableStore
	sched  *scheduler.Scheduler
}

// NewServer creates a new API server. store and sched may be nil.
func NewServer(router *catalog.Router, store catalog.CollectableStore, sched *scheduler.Scheduler, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		logger: logger.With().Str("component", "api").Logger(),
		router: router,
		store:  store,
		sched:  sched,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	catalogHandlers := catalog.NewHandlers(s.router, s.store)
	catalogHandlers.RegisterRoutes(api.Group("/catalog"))
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version         string               `json:"version"`
	ActiveProviders int                  `json:"activeProviders"`
	Tasks           []scheduler.TaskInfo `json:"tasks"`
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Version: config.Version,
		Tasks:   []scheduler.TaskInfo{},
	}
	for _, p := range s.router.Status() {
		if p.Active() {
			resp.ActiveProviders++
		}
	}
	if s.sched != nil {
		resp.Tasks = s.sched.ListTasks()
	}
	return c.JSON(http.StatusOK, resp)
}
