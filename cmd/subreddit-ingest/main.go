// Package main provides the CLI entry point for subreddit-ingest.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/lepinkainen/subreddit-ingest/internal/app"
	"github.com/lepinkainen/subreddit-ingest/internal/config"
	"github.com/lepinkainen/subreddit-ingest/internal/schedule"
	"github.com/lepinkainen/subreddit-ingest/pkg/feed"
	"github.com/lepinkainen/subreddit-ingest/pkg/preview"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Run struct{} `cmd:"run" help:"Fetch the listing once and ingest new self posts."`

	Serve struct{} `cmd:"serve" help:"Run the scheduler and the admin server."`

	Activate struct{} `cmd:"activate" help:"Schedule the ingest event starting now."`

	Deactivate struct{} `cmd:"deactivate" help:"Remove the scheduled ingest event."`

	SetSchedule struct {
		Recurrence string `arg:"" enum:"hourly,twicedaily,daily" help:"How often to ingest (hourly, twicedaily, daily)"`
	} `cmd:"set-schedule" help:"Change the ingest recurrence and reschedule."`

	Status struct{} `cmd:"status" help:"Show the schedule, cursor and post count."`

	Posts struct {
		Limit int `help:"Maximum number of posts to browse" default:"50"`
	} `cmd:"posts" help:"Browse ingested posts interactively."`

	Feed struct {
		Outfile string `help:"Output file path" short:"o" default:"subreddit.xml"`
		Type    string `help:"Feed type" enum:"atom,rss" default:"atom"`
	} `cmd:"feed" help:"Write recent ingested posts as a feed."`

	Backup struct{} `cmd:"backup" help:"Write a timestamped copy of the database."`

	ShowConfig struct{} `cmd:"config" name:"config" help:"Print the effective configuration."`
}

func main() {
	// Parse CLI with Kong YAML configuration file loading
	kctx := kong.Parse(&CLI,
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.subreddit-ingest/config.yaml"),
	)

	// Configure logging level based on debug flag
	switch {
	case CLI.Debug:
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case kctx.Command() == "serve":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if kctx.Command() == "config" {
		out, err := loader.Dump()
		if err != nil {
			slog.Error("Failed to render configuration", "error", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if err := dispatch(ctx, kctx.Command(), a); err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string, a *app.App) error {
	switch command {
	case "run":
		return runOnce(ctx, a)

	case "serve":
		if err := a.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil

	case "activate":
		if err := a.Scheduler.Activate(ctx); err != nil {
			if errors.Is(err, schedule.ErrAlreadyScheduled) {
				fmt.Println("Already active; use deactivate first to restart the schedule.")
				return nil
			}
			return err
		}
		return printStatus(ctx, a)

	case "deactivate":
		if err := a.Scheduler.Deactivate(ctx); err != nil {
			return err
		}
		fmt.Println("Schedule cleared.")
		return nil

	case "set-schedule <recurrence>":
		if err := a.Scheduler.SetRecurrence(ctx, CLI.SetSchedule.Recurrence); err != nil {
			return err
		}
		return printStatus(ctx, a)

	case "status":
		return printStatus(ctx, a)

	case "posts":
		entries, err := a.Entries(ctx, CLI.Posts.Limit)
		if err != nil {
			return err
		}
		return preview.Run(entries, a.Config.Feed.Title)

	case "feed":
		feedType, ok := feed.ParseFeedType(CLI.Feed.Type)
		if !ok {
			return fmt.Errorf("unknown feed type %q", CLI.Feed.Type)
		}
		count, err := a.Publisher.Save(ctx, CLI.Feed.Outfile, feedType)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d posts to %s\n", count, CLI.Feed.Outfile)
		return nil

	case "backup":
		path, err := a.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Database backed up to %s\n", path)
		return nil

	default:
		panic(command)
	}
}

func runOnce(ctx context.Context, a *app.App) error {
	result, err := a.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d, inserted %d, duplicates %d, other domains %d, failed %d\n",
		result.Fetched, result.Inserted, result.Duplicates, result.ForeignDomain, result.Failed)
	if result.Cursor != "" {
		fmt.Printf("Cursor: %s\n", result.Cursor)
	}
	return nil
}

func printStatus(ctx context.Context, a *app.App) error {
	status, err := a.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Recurrence: %s\n", status.Recurrence.Label())
	if status.Next != nil {
		fmt.Printf("Next run:   %s\n", status.Next.NextRunTime().In(a.Config.Location()).Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Println("Next run:   not scheduled")
	}
	if status.Cursor != "" {
		fmt.Printf("Cursor:     %s\n", status.Cursor)
	}
	fmt.Printf("Posts:      %d\n", status.Posts)
	fmt.Printf("Database:   %s (%d bytes)\n", a.DB.Path(), status.DBSize)
	return nil
}
