// Package admin serves the settings page, health, metrics and feed endpoints.
package admin

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lepinkainen/subreddit-ingest/internal/schedule"
	"github.com/lepinkainen/subreddit-ingest/pkg/feed"
	"github.com/lepinkainen/subreddit-ingest/templates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// NonceAction is the action settings-form nonces are issued for
const NonceAction = "update-options"

// nonceCleanupInterval is how often expired nonces are purged while serving
const nonceCleanupInterval = time.Hour

type OptionReader interface {
	Get(ctx context.Context, name, def string) (string, error)
}

type Scheduler interface {
	SetRecurrence(ctx context.Context, value string) error
	Next(ctx context.Context) (*schedule.Event, error)
}

type FeedWriter interface {
	Write(ctx context.Context, w io.Writer, feedType feed.FeedType) error
}

// Config holds server settings
type Config struct {
	Title      string
	ListenAddr string
	Username   string // Basic auth for /options; empty disables it
	Password   string
	Location   *time.Location // Zone used to show the next run
}

// Deps are the collaborators the handlers use
type Deps struct {
	Options   OptionReader
	Scheduler Scheduler
	Nonces    *NonceStore
	Feed      FeedWriter
	Gatherer  prometheus.Gatherer
}

// Server is the admin HTTP server
type Server struct {
	echo *echo.Echo
	cfg  Config
	deps Deps
	page *template.Template
}

type formValidator struct {
	validate *validator.Validate
}

func (v *formValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// New creates the server and registers its routes
func New(cfg Config, deps Deps) (*Server, error) {
	page, err := templates.Parse(templates.OptionsPage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse options template: %w", err)
	}
	if cfg.Title == "" {
		cfg.Title = "Subreddit Ingest"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &formValidator{validate: validator.New()}

	e.Use(requestLogger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, cfg: cfg, deps: deps, page: page}

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/options")
	})
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/feed.atom", s.handleFeed(feed.Atom))
	e.GET("/feed.rss", s.handleFeed(feed.RSS))

	options := e.Group("/options", noStore())
	if cfg.Username != "" {
		options.Use(basicAuth(cfg.Username, cfg.Password))
	}
	options.GET("", s.handleOptionsPage)
	options.POST("", s.handleOptionsUpdate)

	return s, nil
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Admin server listening", "address", s.cfg.ListenAddr)
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Shutting down admin server")
		return s.echo.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(nonceCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if err := s.deps.Nonces.Cleanup(gCtx); err != nil {
					slog.Warn("Failed to purge expired nonces", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
