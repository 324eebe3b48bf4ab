package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/time/rate"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/config"
	"github.com/umputun/wikidaily/pkg/content"
	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/games"
	"github.com/umputun/wikidaily/pkg/games/knowledgeweb"
	"github.com/umputun/wikidaily/pkg/games/linkquest"
	"github.com/umputun/wikidaily/pkg/games/whatinthewiki"
	"github.com/umputun/wikidaily/pkg/reader"
	"github.com/umputun/wikidaily/pkg/repository"
	"github.com/umputun/wikidaily/pkg/scheduler"
	"github.com/umputun/wikidaily/pkg/state"
	"github.com/umputun/wikidaily/pkg/wiki"
	"github.com/umputun/wikidaily/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"configuration file, built-in defaults if empty"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides the config"`

	Generate bool   `long:"generate" description:"generate the daily puzzles and exit"`
	Date     string `long:"date" description:"puzzle day for --generate, YYYY-MM-DD in UTC, today if empty"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	SetupLog(opts.Debug)

	lgr.Printf("[INFO] starting wikidaily version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	lgr.Printf("[INFO] shutdown complete")
}

// app holds the wired services
type app struct {
	deps      server.Deps
	tasks     []scheduler.Task
	preloader *scheduler.Preloader
}

func run(ctx context.Context, opts Opts) error {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	a := newApp(cfg, repos)

	if opts.Generate {
		date := time.Now()
		if opts.Date != "" {
			if date, err = daily.ParseDateKey(opts.Date); err != nil {
				return fmt.Errorf("invalid date %q: %w", opts.Date, err)
			}
		}
		return generate(ctx, a.tasks, date)
	}

	if a.preloader != nil {
		a.preloader.Start(ctx)
		defer a.preloader.Stop()
	}

	srv := server.New(cfg, a.deps, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newApp wires the wiki client, the games and the state stores over the database
func newApp(cfg *config.Config, repos *repository.Repositories) *app {
	kv := repos.KV.Scope(repository.ScopeLocal)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps := cfg.Wikipedia.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), cfg.Wikipedia.Burst)
	}
	wc := wiki.New(wiki.Params{
		APIURL:            cfg.Wikipedia.APIURL,
		RESTURL:           cfg.Wikipedia.RESTURL,
		MetricsURL:        cfg.Wikipedia.MetricsURL,
		FeaturedFeedURL:   cfg.Wikipedia.FeaturedFeedURL,
		Project:           cfg.Wikipedia.Project,
		UserAgent:         cfg.Wikipedia.UserAgent,
		Timeout:           cfg.Wikipedia.Timeout,
		Limiter:           limiter,
		Cache:             cache.Prefixed{Store: kv, Prefix: "wiki_"},
		FeaturedTitlesTTL: cfg.Cache.FeaturedTitlesTTL,
		ArticleTTL:        cfg.Cache.ArticleTTL,
	})
	resolver := &games.Resolver{Source: wc, ListMax: cfg.Games.WhatInTheWiki.FeaturedListMax}

	history := state.NewHistory(kv)
	rabbitHoles := state.NewRabbitHoles(kv)
	reminders := state.NewReminders(kv)
	feed := state.NewFeedSettings(kv)
	streaks := state.NewStreaks(kv)

	lqCfg := cfg.Games.LinkQuest
	lqGen := linkquest.NewGenerator(wc, resolver, kv, linkquest.Params{
		MinLinked:      lqCfg.MinLinked,
		MaxLinked:      lqCfg.MaxLinked,
		TotalCards:     lqCfg.TotalCards,
		CandidateLimit: lqCfg.CandidateLimit,
		TTL:            cfg.Cache.PuzzleTTL,
	})
	kwCfg := cfg.Games.KnowledgeWeb
	kwGen := knowledgeweb.NewGenerator(wc, resolver, kv, knowledgeweb.Params{
		ContentTimeout: kwCfg.ContentTimeout,
		MaxAttempts:    kwCfg.MaxAttempts,
		AllowFallback:  kwCfg.FallbackAllowed(),
		TTL:            cfg.Cache.PuzzleTTL,
	})
	wiwGen := whatinthewiki.NewGenerator(wc, kv, whatinthewiki.Params{
		Options:         cfg.Games.WhatInTheWiki.Options,
		FeaturedListMax: cfg.Games.WhatInTheWiki.FeaturedListMax,
		TTL:             cfg.Cache.PuzzleTTL,
	})

	rd := reader.NewService(reader.Params{
		Wiki:        wc,
		Text:        content.NewExtractor(wiki.ArticleBaseURL(cfg.Wikipedia.APIURL)),
		History:     history,
		RabbitHoles: rabbitHoles,
		Reminders:   reminders,
		Feed:        feed,
	})

	tasks := []scheduler.Task{
		scheduler.TaskOf(linkquest.GameName, lqGen.Generate),
		scheduler.TaskOf(knowledgeweb.GameName, kwGen.Generate),
		scheduler.TaskOf(whatinthewiki.GameName, wiwGen.Generate),
	}

	res := &app{
		deps: server.Deps{
			Reader:        rd,
			LinkQuest:     linkquest.NewService(lqGen, linkquest.NewStore(kv), streaks),
			KnowledgeWeb:  knowledgeweb.NewService(kwGen, kv, streaks),
			WhatInTheWiki: whatinthewiki.NewService(wiwGen, kv, streaks),
			History:       history,
			RabbitHoles:   rabbitHoles,
			Reminders:     reminders,
			FeedSettings:  feed,
			Streaks:       streaks,
		},
		tasks: tasks,
	}

	if cfg.Preload.Enabled {
		// expired puzzles and session data are dropped once a day along with the preload
		cleanup := scheduler.Task{Name: "kv-cleanup", Generate: func(ctx context.Context, _ time.Time) error {
			n, err := repos.KV.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			lgr.Printf("[DEBUG] removed %d expired keys", n)
			return nil
		}}
		res.preloader = scheduler.NewPreloader(scheduler.Params{
			Tasks:    append(append([]scheduler.Task{}, tasks...), cleanup),
			Interval: cfg.Preload.Interval,
		})
	}
	return res
}

// generate builds the puzzles of a day one by one and reports every failure
func generate(ctx context.Context, tasks []scheduler.Task, date time.Time) error {
	var errs []error
	for _, t := range tasks {
		start := time.Now()
		if err := t.Generate(ctx, date); err != nil {
			lgr.Printf("[WARN] %s for %s failed: %v", t.Name, daily.DateKey(date), err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		lgr.Printf("[INFO] %s for %s generated in %v", t.Name, daily.DateKey(date), time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

// SetupLog configures the logger, secrets are masked in the output
func SetupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
