package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:wikidaily.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Wikipedia WikipediaConfig `yaml:"wikipedia" json:"wikipedia" jsonschema:"description=Wikipedia API access"`
	Cache     CacheConfig     `yaml:"cache" json:"cache" jsonschema:"description=Cache lifetimes"`
	Games     GamesConfig     `yaml:"games" json:"games" jsonschema:"description=Daily puzzle settings"`
	Preload   PreloadConfig   `yaml:"preload" json:"preload" jsonschema:"description=Daily puzzle preloading"`
}

// WikipediaConfig holds Wikipedia API endpoints and client settings
type WikipediaConfig struct {
	APIURL            string        `yaml:"api_url" json:"api_url" jsonschema:"default=https://en.wikipedia.org/w/api.php,description=MediaWiki action API endpoint"`
	RESTURL           string        `yaml:"rest_url" json:"rest_url" jsonschema:"default=https://en.wikipedia.org/api/rest_v1,description=Wikipedia REST API base"`
	MetricsURL        string        `yaml:"metrics_url" json:"metrics_url" jsonschema:"default=https://wikimedia.org/api/rest_v1/metrics,description=Wikimedia metrics API base"`
	FeaturedFeedURL   string        `yaml:"featured_feed_url" json:"featured_feed_url" jsonschema:"description=Featured article Atom feed (defaults to the api_url featuredfeed action)"`
	Project           string        `yaml:"project" json:"project" jsonschema:"default=en.wikipedia,description=Project name used by the pageviews API"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent sent to Wikimedia APIs"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=HTTP request timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" jsonschema:"default=0,minimum=0,description=Client side request pacing, 0 disables it"`
	Burst             int           `yaml:"burst" json:"burst" jsonschema:"default=10,minimum=1,description=Request burst allowed by the pacing"`
}

// CacheConfig holds cache lifetimes
type CacheConfig struct {
	FeaturedTitlesTTL time.Duration `yaml:"featured_titles_ttl" json:"featured_titles_ttl" jsonschema:"default=168h,description=Lifetime of the featured articles list"`
	PuzzleTTL         time.Duration `yaml:"puzzle_ttl" json:"puzzle_ttl" jsonschema:"default=24h,description=Lifetime of a generated daily puzzle"`
	ArticleTTL        time.Duration `yaml:"article_ttl" json:"article_ttl" jsonschema:"default=1h,description=Lifetime of cached article HTML, 0 disables it"`
}

// GamesConfig holds per game settings
type GamesConfig struct {
	LinkQuest     LinkQuestConfig     `yaml:"link_quest" json:"link_quest" jsonschema:"description=LinkQuest deck settings"`
	KnowledgeWeb  KnowledgeWebConfig  `yaml:"knowledge_web" json:"knowledge_web" jsonschema:"description=Knowledge Web search settings"`
	WhatInTheWiki WhatInTheWikiConfig `yaml:"what_in_the_wiki" json:"what_in_the_wiki" jsonschema:"description=What in the Wiki settings"`
}

// LinkQuestConfig holds LinkQuest deck settings
type LinkQuestConfig struct {
	MinLinked      int `yaml:"min_linked" json:"min_linked" jsonschema:"default=5,minimum=1,description=Fewest linked cards a deck may have"`
	MaxLinked      int `yaml:"max_linked" json:"max_linked" jsonschema:"default=7,minimum=1,description=Most linked cards in a deck"`
	TotalCards     int `yaml:"total_cards" json:"total_cards" jsonschema:"default=10,minimum=2,description=Cards in a deck"`
	CandidateLimit int `yaml:"candidate_limit" json:"candidate_limit" jsonschema:"default=20,minimum=1,description=Linked candidates inspected for context"`
}

// KnowledgeWebConfig holds Knowledge Web connector search settings
type KnowledgeWebConfig struct {
	ContentTimeout time.Duration `yaml:"content_timeout" json:"content_timeout" jsonschema:"default=10s,description=Timeout of one candidate article fetch"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts" jsonschema:"default=30,minimum=1,description=Connector candidates inspected per slot and pass"`
	AllowFallback  *bool         `yaml:"allow_fallback" json:"allow_fallback" jsonschema:"default=true,description=Accept unproven connectors when the search comes up short"`
}

// WhatInTheWikiConfig holds What in the Wiki settings
type WhatInTheWikiConfig struct {
	Options         int `yaml:"options" json:"options" jsonschema:"default=4,minimum=2,maximum=10,description=Choices offered, the answer included"`
	FeaturedListMax int `yaml:"featured_list_max" json:"featured_list_max" jsonschema:"default=2500,minimum=1,description=Featured articles loaded to pick from"`
}

// PreloadConfig holds daily preload settings
type PreloadConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Generate puzzles ahead of the first request of a day"`
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=How often the UTC date is checked"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// SetDefaults fills unset values
func (c *Config) SetDefaults() {
	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:wikidaily.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// wikipedia
	w := &c.Wikipedia
	if w.APIURL == "" {
		w.APIURL = "https://en.wikipedia.org/w/api.php"
	}
	if w.RESTURL == "" {
		w.RESTURL = "https://en.wikipedia.org/api/rest_v1"
	}
	if w.MetricsURL == "" {
		w.MetricsURL = "https://wikimedia.org/api/rest_v1/metrics"
	}
	if w.Project == "" {
		w.Project = "en.wikipedia"
	}
	if w.Timeout == 0 {
		w.Timeout = 15 * time.Second
	}
	if w.Burst == 0 {
		w.Burst = 10
	}

	// cache
	if c.Cache.FeaturedTitlesTTL == 0 {
		c.Cache.FeaturedTitlesTTL = 7 * 24 * time.Hour
	}
	if c.Cache.PuzzleTTL == 0 {
		c.Cache.PuzzleTTL = 24 * time.Hour
	}
	if c.Cache.ArticleTTL == 0 {
		c.Cache.ArticleTTL = time.Hour
	}

	// games
	lq := &c.Games.LinkQuest
	if lq.MinLinked == 0 {
		lq.MinLinked = 5
	}
	if lq.MaxLinked == 0 {
		lq.MaxLinked = 7
	}
	if lq.TotalCards == 0 {
		lq.TotalCards = 10
	}
	if lq.CandidateLimit == 0 {
		lq.CandidateLimit = 20
	}
	kw := &c.Games.KnowledgeWeb
	if kw.ContentTimeout == 0 {
		kw.ContentTimeout = 10 * time.Second
	}
	if kw.MaxAttempts == 0 {
		kw.MaxAttempts = 30
	}
	if kw.AllowFallback == nil {
		allow := true
		kw.AllowFallback = &allow
	}
	if c.Games.WhatInTheWiki.Options == 0 {
		c.Games.WhatInTheWiki.Options = 4
	}
	if c.Games.WhatInTheWiki.FeaturedListMax == 0 {
		c.Games.WhatInTheWiki.FeaturedListMax = 2500
	}

	// preload
	if c.Preload.Interval == 0 {
		c.Preload.Interval = 5 * time.Minute
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate wikipedia config
	for name, raw := range map[string]string{"api_url": cfg.Wikipedia.APIURL, "rest_url": cfg.Wikipedia.RESTURL,
		"metrics_url": cfg.Wikipedia.MetricsURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("wikipedia.%s must be an absolute URL, got %q", name, raw)
		}
	}
	if cfg.Wikipedia.RequestsPerSecond < 0 {
		return fmt.Errorf("wikipedia.requests_per_second must be non-negative")
	}
	if cfg.Wikipedia.Timeout < time.Second {
		return fmt.Errorf("wikipedia.timeout must be at least 1 second")
	}

	// validate games config
	lq := cfg.Games.LinkQuest
	if lq.MinLinked < 1 || lq.MinLinked > lq.MaxLinked {
		return fmt.Errorf("games.link_quest.min_linked must be between 1 and max_linked (%d)", lq.MaxLinked)
	}
	if lq.TotalCards <= lq.MaxLinked {
		return fmt.Errorf("games.link_quest.total_cards must be greater than max_linked (%d)", lq.MaxLinked)
	}
	if cfg.Games.KnowledgeWeb.MaxAttempts < 1 {
		return fmt.Errorf("games.knowledge_web.max_attempts must be at least 1")
	}
	if cfg.Games.KnowledgeWeb.ContentTimeout < 100*time.Millisecond {
		return fmt.Errorf("games.knowledge_web.content_timeout must be at least 100ms")
	}
	if o := cfg.Games.WhatInTheWiki.Options; o < 2 || o > 10 {
		return fmt.Errorf("games.what_in_the_wiki.options must be between 2 and 10")
	}

	// validate preload config
	if cfg.Preload.Enabled && cfg.Preload.Interval < time.Second {
		return fmt.Errorf("preload interval must be at least 1 second")
	}

	return nil
}

// FallbackAllowed reports whether Knowledge Web may use unproven connectors
func (c KnowledgeWebConfig) FallbackAllowed() bool {
	return c.AllowFallback == nil || *c.AllowFallback
}
