package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/config"
	"github.com/lepinkainen/subreddit-ingest/internal/schedule"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingBody = `{"kind":"Listing","data":{"children":[
	{"kind":"t3","data":{"name":"t3_first","domain":"SELF.WordPress","title":"First &amp; <b>bold</b>",
		"selftext":"Body one","url":"https://www.reddit.com/r/Wordpress/comments/first/",
		"created_utc":1709287200,"ups":7,"author":"alice"}},
	{"kind":"t3","data":{"name":"t3_link","domain":"example.com","title":"Link post"}}
]}}`

func testConfig(t *testing.T, sourceURL string) *config.Config {
	t.Helper()

	var cfg config.Config
	cfg.Source.URL = sourceURL
	cfg.Source.SelfDomain = "self.wordpress"
	cfg.Source.UserAgent = "subreddit-ingest-test/1.0"
	cfg.Source.Timeout = 5 * time.Second
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "app.db")
	cfg.Posts.AuthorID = 1
	cfg.Posts.Status = "publish"
	cfg.Posts.Timezone = "UTC"
	cfg.Schedule.Default = "hourly"
	cfg.Schedule.CheckInterval = time.Minute
	cfg.Admin.ListenAddr = "127.0.0.1:0"
	cfg.Feed.Title = "r/wordpress self posts"
	cfg.Feed.Link = "https://www.reddit.com/r/wordpress/"
	cfg.Feed.Limit = 10
	return &cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingBody))
	}))
	t.Cleanup(server.Close)

	a, err := New(context.Background(), testConfig(t, server.URL+"/r/wordpress.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RejectsInvalidDefaultRecurrence(t *testing.T) {
	cfg := testConfig(t, "https://www.reddit.com/r/wordpress.json")
	cfg.Schedule.Default = "weekly"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, schedule.ErrInvalidRecurrence)
}

func TestApp_RunOnceAndStatus(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	result, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.ForeignDomain)
	assert.Equal(t, "t3_first", result.Cursor)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schedule.Hourly, status.Recurrence)
	assert.Nil(t, status.Next)
	assert.Equal(t, "t3_first", status.Cursor)
	assert.Equal(t, 1, status.Posts)

	entries, err := a.Entries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "First & bold", entries[0].Title)
	assert.Equal(t, "2024-03-01 10:00:00", entries[0].PostDate)
	assert.Equal(t, "alice", entries[0].Meta["reddit_author"])
	assert.Equal(t, 7, entries[0].Ups())
}

func TestApp_RunnerIngestsWhenActivated(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	ran, err := a.Runner().Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "nothing runs before activation")

	require.NoError(t, a.Scheduler.Activate(ctx))
	ran, err = a.Runner().Tick(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	count, err := a.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	next, err := a.Scheduler.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.NextRunTime().After(time.Now()))
}

func TestApp_AdminServerServesHealth(t *testing.T) {
	a := newTestApp(t)

	server, err := a.AdminServer(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestApp_Backup(t *testing.T) {
	a := newTestApp(t)

	path, err := a.Backup(context.Background())
	require.NoError(t, err)
	assert.True(t, database.DatabaseExists(path))
}
