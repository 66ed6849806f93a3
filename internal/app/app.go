// Package app wires configuration, storage and services into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/admin"
	"github.com/lepinkainen/subreddit-ingest/internal/config"
	"github.com/lepinkainen/subreddit-ingest/internal/ingest"
	"github.com/lepinkainen/subreddit-ingest/internal/metrics"
	"github.com/lepinkainen/subreddit-ingest/internal/publish"
	"github.com/lepinkainen/subreddit-ingest/internal/reddit"
	"github.com/lepinkainen/subreddit-ingest/internal/schedule"
	"github.com/lepinkainen/subreddit-ingest/internal/store"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
	"github.com/lepinkainen/subreddit-ingest/pkg/feed"
	"github.com/lepinkainen/subreddit-ingest/pkg/filesystem"
	"github.com/lepinkainen/subreddit-ingest/pkg/preview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	DB        *database.Database
	Posts     *store.PostStore
	Options   *store.OptionStore
	Scheduler *schedule.Scheduler
	Ingest    *ingest.Service
	Publisher *publish.Publisher
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
}

// Status is a snapshot of the schedule and storage
type Status struct {
	Recurrence schedule.Recurrence
	Next       *schedule.Event
	Cursor     string
	Posts      int
	DBSize     int64
}

// New opens the database and builds every component from cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	defaultRecurrence, err := schedule.ParseRecurrence(cfg.Schedule.Default)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.default: %w", err)
	}

	if err := filesystem.EnsureDirectoryExists(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbConfig := database.DefaultConfig()
	dbConfig.Path = cfg.Database.Path
	db, err := database.NewDatabase(dbConfig)
	if err != nil {
		return nil, err
	}
	if err := store.InitializeSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	client, err := newListingClient(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	posts := store.NewPostStore(db)
	options := store.NewOptionStore(db)
	location := cfg.Location()

	service := ingest.New(client, posts, options, ingest.Options{
		SelfDomain: cfg.Source.SelfDomain,
		AuthorID:   cfg.Posts.AuthorID,
		Status:     cfg.Posts.Status,
		Location:   location,
	}, m, time.Now)

	generator := feed.NewGenerator(cfg.Feed.Title, cfg.Feed.Description, cfg.Feed.Link, "")

	return &App{
		Config:    cfg,
		DB:        db,
		Posts:     posts,
		Options:   options,
		Scheduler: schedule.New(options, defaultRecurrence, time.Now),
		Ingest:    service,
		Publisher: publish.New(posts, generator, cfg.Feed.Limit, location),
		Registry:  registry,
		Metrics:   m,
	}, nil
}

// newListingClient builds the listing client, authenticated when OAuth credentials are set
func newListingClient(ctx context.Context, cfg *config.Config) (*reddit.Client, error) {
	clientConfig := reddit.ClientConfig{
		URL:         cfg.Source.URL,
		UserAgent:   cfg.Source.UserAgent,
		Timeout:     cfg.Source.Timeout,
		MinInterval: cfg.Source.MinInterval,
	}

	if cfg.OAuthEnabled() {
		listingURL, err := reddit.OAuthListingURL(cfg.Source.URL)
		if err != nil {
			return nil, err
		}
		clientConfig.URL = listingURL
		clientConfig.HTTPClient = reddit.NewOAuthHTTPClient(ctx, reddit.OAuthConfig{
			ClientID:     cfg.RedditOAuth.ClientID,
			ClientSecret: cfg.RedditOAuth.ClientSecret,
			TokenURL:     cfg.RedditOAuth.TokenURL,
			UserAgent:    cfg.Source.UserAgent,
		}, cfg.Source.Timeout)
		slog.Debug("Using OAuth listing endpoint", "url", listingURL)
	}

	return reddit.NewClient(clientConfig), nil
}

// Close closes the database
func (a *App) Close() error {
	return a.DB.Close()
}

// RunOnce performs a single ingest run
func (a *App) RunOnce(ctx context.Context) (ingest.Result, error) {
	return a.Ingest.Run(ctx)
}

// Runner returns a runner that ingests whenever the scheduled event is due
func (a *App) Runner() *schedule.Runner {
	return schedule.NewRunner(a.Scheduler, func(ctx context.Context) error {
		_, err := a.Ingest.Run(ctx)
		return err
	}, a.Config.Schedule.CheckInterval)
}

// AdminServer builds the settings and monitoring server
func (a *App) AdminServer(ctx context.Context) (*admin.Server, error) {
	nonces, err := admin.NewNonceStore(ctx, a.DB, a.Config.Admin.NonceTTL)
	if err != nil {
		return nil, err
	}

	return admin.New(admin.Config{
		ListenAddr: a.Config.Admin.ListenAddr,
		Username:   a.Config.Admin.Username,
		Password:   a.Config.Admin.Password,
		Location:   a.Config.Location(),
	}, admin.Deps{
		Options:   a.Options,
		Scheduler: a.Scheduler,
		Nonces:    nonces,
		Feed:      a.Publisher,
		Gatherer:  a.Registry,
	})
}

// Serve runs the scheduler and the admin server until ctx is done
func (a *App) Serve(ctx context.Context) error {
	server, err := a.AdminServer(ctx)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Runner().Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return server.Start(gCtx)
	})

	return g.Wait()
}

// Status reports the schedule, the cursor and storage figures
func (a *App) Status(ctx context.Context) (Status, error) {
	var status Status
	var err error

	if status.Recurrence, err = a.Scheduler.Recurrence(ctx); err != nil {
		return Status{}, err
	}
	if status.Next, err = a.Scheduler.Next(ctx); err != nil {
		return Status{}, err
	}
	if status.Cursor, err = a.Options.Get(ctx, ingest.CursorOption, ""); err != nil {
		return Status{}, err
	}
	if status.Posts, err = a.Posts.Count(ctx); err != nil {
		return Status{}, err
	}
	if status.DBSize, err = database.GetDatabaseSize(a.DB.Path()); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Entries loads the newest posts with their meta for browsing
func (a *App) Entries(ctx context.Context, limit int) ([]preview.Entry, error) {
	posts, err := a.Posts.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	meta, err := a.Posts.MetaFor(ctx, lo.Map(posts, func(p store.Post, _ int) int64 { return p.ID }))
	if err != nil {
		return nil, err
	}

	return lo.Map(posts, func(p store.Post, _ int) preview.Entry {
		return preview.Entry{
			ID:       p.ID,
			Title:    p.Title,
			Content:  p.Content,
			Status:   p.Status,
			PostDate: p.PostDate,
			Meta:     meta[p.ID],
		}
	}), nil
}

// Backup writes a timestamped copy of the database and returns its path
func (a *App) Backup(ctx context.Context) (string, error) {
	return database.BackupDatabase(ctx, a.DB, time.Now())
}
