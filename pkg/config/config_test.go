package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		t.Setenv("WIKIDAILY_TEST_UA", "wikidaily-test/1.0 (ops@example.com)")
		configPath := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 45s

wikipedia:
  api_url: https://de.wikipedia.org/w/api.php
  rest_url: https://de.wikipedia.org/api/rest_v1
  project: de.wikipedia
  user_agent: ${WIKIDAILY_TEST_UA}
  requests_per_second: 5
  burst: 3

cache:
  puzzle_ttl: 12h

games:
  link_quest:
    min_linked: 4
    max_linked: 6
    total_cards: 12
  knowledge_web:
    content_timeout: 3s
    allow_fallback: false
  what_in_the_wiki:
    options: 6

preload:
  enabled: true
  interval: 1m
`)
		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Equal(t, "https://de.wikipedia.org/w/api.php", cfg.Wikipedia.APIURL)
		assert.Equal(t, "de.wikipedia", cfg.Wikipedia.Project)
		assert.Equal(t, "wikidaily-test/1.0 (ops@example.com)", cfg.Wikipedia.UserAgent)
		assert.InEpsilon(t, 5.0, cfg.Wikipedia.RequestsPerSecond, 0.001)
		assert.Equal(t, 3, cfg.Wikipedia.Burst)
		assert.Equal(t, "https://wikimedia.org/api/rest_v1/metrics", cfg.Wikipedia.MetricsURL)

		assert.Equal(t, 12*time.Hour, cfg.Cache.PuzzleTTL)
		assert.Equal(t, 7*24*time.Hour, cfg.Cache.FeaturedTitlesTTL)

		assert.Equal(t, LinkQuestConfig{MinLinked: 4, MaxLinked: 6, TotalCards: 12, CandidateLimit: 20}, cfg.Games.LinkQuest)
		assert.Equal(t, 3*time.Second, cfg.Games.KnowledgeWeb.ContentTimeout)
		assert.False(t, cfg.Games.KnowledgeWeb.FallbackAllowed())
		assert.Equal(t, 6, cfg.Games.WhatInTheWiki.Options)

		assert.True(t, cfg.Preload.Enabled)
		assert.Equal(t, time.Minute, cfg.Preload.Interval)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "server:\n  listen: \":8081\"\n"))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// check server defaults
		assert.Equal(t, ":8081", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)

		// check database defaults
		assert.Contains(t, cfg.Database.DSN, "wikidaily.db")
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)

		// check wikipedia and games defaults
		assert.Equal(t, "https://en.wikipedia.org/w/api.php", cfg.Wikipedia.APIURL)
		assert.Equal(t, 15*time.Second, cfg.Wikipedia.Timeout)
		assert.Zero(t, cfg.Wikipedia.RequestsPerSecond)
		assert.Equal(t, LinkQuestConfig{MinLinked: 5, MaxLinked: 7, TotalCards: 10, CandidateLimit: 20}, cfg.Games.LinkQuest)
		assert.Equal(t, 10*time.Second, cfg.Games.KnowledgeWeb.ContentTimeout)
		assert.Equal(t, 30, cfg.Games.KnowledgeWeb.MaxAttempts)
		assert.True(t, cfg.Games.KnowledgeWeb.FallbackAllowed())
		assert.Equal(t, WhatInTheWikiConfig{Options: 4, FeaturedListMax: 2500}, cfg.Games.WhatInTheWiki)
		assert.False(t, cfg.Preload.Enabled)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
invalid yaml content
  with bad indentation
    and no structure
`))
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("invalid values", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "games:\n  link_quest:\n    min_linked: 8\n"))
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "validate config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{name: "short server timeout", modify: func(c *Config) { c.Server.Timeout = time.Millisecond }, errMsg: "server timeout"},
		{name: "relative api url", modify: func(c *Config) { c.Wikipedia.APIURL = "/w/api.php" }, errMsg: "wikipedia.api_url"},
		{name: "negative pacing", modify: func(c *Config) { c.Wikipedia.RequestsPerSecond = -1 }, errMsg: "requests_per_second"},
		{name: "min over max linked", modify: func(c *Config) { c.Games.LinkQuest.MinLinked = 9 }, errMsg: "min_linked"},
		{name: "deck without unlinked cards", modify: func(c *Config) { c.Games.LinkQuest.TotalCards = 7 }, errMsg: "total_cards"},
		{name: "no attempts", modify: func(c *Config) { c.Games.KnowledgeWeb.MaxAttempts = -1 }, errMsg: "max_attempts"},
		{name: "one option", modify: func(c *Config) { c.Games.WhatInTheWiki.Options = 1 }, errMsg: "options"},
		{name: "fast preload", modify: func(c *Config) { c.Preload.Enabled, c.Preload.Interval = true, time.Millisecond },
			errMsg: "preload interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := validate(cfg)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_GetServerConfig(t *testing.T) {
	cfg := Default()
	cfg.Server.Listen = "127.0.0.1:9999"

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, "127.0.0.1:9999", listen)
	assert.Equal(t, 30*time.Second, timeout)
}
