// Package config loads the service configuration from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/lepinkainen/subreddit-ingest/pkg/filesystem"
	"github.com/lepinkainen/subreddit-ingest/pkg/urlutils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SUBREDDIT_INGEST_SOURCE_URL
const EnvPrefix = "SUBREDDIT_INGEST"

// DefaultDatabaseName is used when database.path is not configured
const DefaultDatabaseName = "subreddit-ingest.db"

// Config holds the central application configuration
type Config struct {
	// Listing source
	Source struct {
		URL         string        `mapstructure:"url"`          // Listing endpoint, e.g. https://www.reddit.com/r/wordpress.json
		SelfDomain  string        `mapstructure:"self_domain"`  // Domain value of self posts, e.g. self.wordpress
		UserAgent   string        `mapstructure:"user_agent"`   // Reddit rejects default Go user agents
		Timeout     time.Duration `mapstructure:"timeout"`      // HTTP timeout for one fetch
		MinInterval time.Duration `mapstructure:"min_interval"` // Minimum delay between fetches
	} `mapstructure:"source"`

	// Optional app-only OAuth credentials
	RedditOAuth struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		TokenURL     string `mapstructure:"token_url"`
	} `mapstructure:"reddit_oauth"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	// Content records created for ingested items
	Posts struct {
		AuthorID int64  `mapstructure:"author_id"`
		Status   string `mapstructure:"status"`
		Timezone string `mapstructure:"timezone"` // Location used to render post_date
	} `mapstructure:"posts"`

	Schedule struct {
		Default       string        `mapstructure:"default"`        // Recurrence used when none is stored
		CheckInterval time.Duration `mapstructure:"check_interval"` // How often the runner checks for a due event
	} `mapstructure:"schedule"`

	Admin struct {
		ListenAddr string        `mapstructure:"listen_addr"`
		Username   string        `mapstructure:"username"`
		Password   string        `mapstructure:"password"`
		NonceTTL   time.Duration `mapstructure:"nonce_ttl"`
	} `mapstructure:"admin"`

	Feed struct {
		Title       string `mapstructure:"title"`
		Link        string `mapstructure:"link"`
		Description string `mapstructure:"description"`
		Limit       int    `mapstructure:"limit"`
	} `mapstructure:"feed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "https://www.reddit.com/r/wordpress.json")
	v.SetDefault("source.self_domain", "self.wordpress")
	v.SetDefault("source.user_agent", "subreddit-ingest/1.0")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.min_interval", 2*time.Second)

	v.SetDefault("reddit_oauth.client_id", "")
	v.SetDefault("reddit_oauth.client_secret", "")
	v.SetDefault("reddit_oauth.token_url", "https://www.reddit.com/api/v1/access_token")

	dbPath, err := filesystem.GetDefaultPath(DefaultDatabaseName)
	if err != nil {
		dbPath = DefaultDatabaseName
	}
	v.SetDefault("database.path", dbPath)

	v.SetDefault("posts.author_id", 1)
	v.SetDefault("posts.status", "publish")
	v.SetDefault("posts.timezone", "UTC")

	v.SetDefault("schedule.default", "hourly")
	v.SetDefault("schedule.check_interval", time.Minute)

	v.SetDefault("admin.listen_addr", "127.0.0.1:8088")
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.nonce_ttl", 12*time.Hour)

	v.SetDefault("feed.title", "r/wordpress self posts")
	v.SetDefault("feed.link", "https://www.reddit.com/r/wordpress/")
	v.SetDefault("feed.description", "Self posts ingested from r/wordpress")
	v.SetDefault("feed.limit", 50)
}

// Loader reads configuration with viper
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment overrides applied
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads the configuration file at path. A missing file is not an error; defaults apply.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = filesystem.ResolvePath(path)

	l.v.SetConfigFile(path)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Dump renders the effective settings as YAML
func (l *Loader) Dump() ([]byte, error) {
	settings := l.v.AllSettings()
	if secret, ok := settings["admin"].(map[string]any); ok && secret["password"] != "" {
		secret["password"] = "********"
	}
	if secret, ok := settings["reddit_oauth"].(map[string]any); ok && secret["client_secret"] != "" {
		secret["client_secret"] = "********"
	}

	return yaml.Marshal(stringifyDurations(settings))
}

// stringifyDurations converts durations to their string form so the YAML reads "30s" rather than nanoseconds
func stringifyDurations(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch value := settings[key].(type) {
		case time.Duration:
			out[key] = value.String()
		case map[string]any:
			out[key] = stringifyDurations(value)
		default:
			out[key] = value
		}
	}
	return out
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if !urlutils.IsHTTPURL(c.Source.URL) {
		return fmt.Errorf("invalid source.url %q", c.Source.URL)
	}

	if strings.TrimSpace(c.Source.SelfDomain) == "" {
		return fmt.Errorf("source.self_domain must not be empty")
	}

	if _, err := time.LoadLocation(c.Posts.Timezone); err != nil {
		return fmt.Errorf("invalid posts.timezone %q: %w", c.Posts.Timezone, err)
	}

	if (c.RedditOAuth.ClientID == "") != (c.RedditOAuth.ClientSecret == "") {
		return fmt.Errorf("reddit_oauth requires both client_id and client_secret")
	}

	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return fmt.Errorf("admin requires both username and password, or neither")
	}

	return nil
}

// Location returns the time zone used for post dates
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Posts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OAuthEnabled reports whether app-only OAuth credentials are configured
func (c *Config) OAuthEnabled() bool {
	return c.RedditOAuth.ClientID != "" && c.RedditOAuth.ClientSecret != ""
}
