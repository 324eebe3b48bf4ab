// Package server exposes the reader, the state stores and the daily games as a JSON HTTP API
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/games/knowledgeweb"
	"github.com/umputun/wikidaily/pkg/games/linkquest"
	"github.com/umputun/wikidaily/pkg/games/whatinthewiki"
	"github.com/umputun/wikidaily/pkg/reader"
)

// Server represents HTTP server instance
type Server struct {
	Deps
	config  ConfigProvider
	version string
	debug   bool
	now     func() time.Time

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Deps are the services behind the API
type Deps struct {
	Reader        Reader
	LinkQuest     LinkQuest
	KnowledgeWeb  KnowledgeWeb
	WhatInTheWiki WhatInTheWiki
	History       History
	RabbitHoles   RabbitHoles
	Reminders     Reminders
	FeedSettings  FeedSettings
	Streaks       Streaks
}

// Reader serves search, articles and the home feed
type Reader interface {
	Search(ctx context.Context, query string) []domain.SearchResult
	Article(ctx context.Context, session, title, source string) *reader.Article
	Recommendations(ctx context.Context, limit int) []domain.SearchResult
	Home(ctx context.Context, date time.Time) *reader.Home
}

// LinkQuest runs the LinkQuest game
type LinkQuest interface {
	Today(ctx context.Context, date time.Time) (*linkquest.View, error)
	Answer(ctx context.Context, date time.Time, linked bool) (*linkquest.View, error)
	Shuffle(ctx context.Context, date time.Time) (*linkquest.View, error)
	Hint(ctx context.Context, date time.Time) (*linkquest.View, error)
	Result(ctx context.Context, date time.Time) (*domain.GameResult, error)
}

// KnowledgeWeb runs the Knowledge Web game
type KnowledgeWeb interface {
	Today(ctx context.Context, date time.Time) (*knowledgeweb.View, error)
	Place(ctx context.Context, date time.Time, position, title string) (*knowledgeweb.View, error)
	Submit(ctx context.Context, date time.Time, placements map[string]string) (*knowledgeweb.View, error)
}

// WhatInTheWiki runs the What in the Wiki game
type WhatInTheWiki interface {
	Today(ctx context.Context, date time.Time) (*whatinthewiki.View, error)
	Reveal(ctx context.Context, date time.Time) (*whatinthewiki.View, error)
	Guess(ctx context.Context, date time.Time, guess string) (*whatinthewiki.View, error)
}

// History is the viewed articles list
type History interface {
	List(ctx context.Context) []domain.HistoryItem
	Clear(ctx context.Context) error
}

// RabbitHoles lists the rabbit holes of a session
type RabbitHoles interface {
	List(ctx context.Context, session string) ([]domain.RabbitHole, error)
}

// Reminders keeps the donation reminder settings
type Reminders interface {
	Settings(ctx context.Context) domain.ReminderSettings
	Save(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error)
	Acknowledge(ctx context.Context) domain.ReminderSettings
}

// FeedSettings keeps the home feed block selection
type FeedSettings interface {
	Get(ctx context.Context) domain.FeedSettings
	Save(ctx context.Context, s domain.FeedSettings) error
}

// Streaks reports game streaks
type Streaks interface {
	Get(ctx context.Context, game, today string) domain.Streak
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, deps Deps, version string, debug bool) *Server {
	s := &Server{
		Deps:    deps,
		config:  cfg,
		version: version,
		debug:   debug,
		now:     time.Now,
		router:  routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		// puzzle generation on a cold cache scrapes dozens of articles
		WriteTimeout: 2 * timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("wikidaily", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // 64KB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		// reading
		r.HandleFunc("GET /search", s.searchHandler)
		r.HandleFunc("GET /article/{title}", s.articleHandler)
		r.HandleFunc("GET /home", s.homeHandler)
		r.HandleFunc("GET /recommendations", s.recommendationsHandler)
		r.HandleFunc("GET /history", s.historyHandler)
		r.HandleFunc("DELETE /history", s.clearHistoryHandler)
		r.HandleFunc("GET /rabbit-holes", s.rabbitHolesHandler)

		// settings
		r.HandleFunc("GET /reminder", s.reminderHandler)
		r.HandleFunc("PUT /reminder", s.saveReminderHandler)
		r.HandleFunc("POST /reminder/ack", s.ackReminderHandler)
		r.HandleFunc("GET /feed-settings", s.feedSettingsHandler)
		r.HandleFunc("PUT /feed-settings", s.saveFeedSettingsHandler)
		r.HandleFunc("GET /streaks", s.streaksHandler)

		// games
		r.HandleFunc("GET /linkquest", s.linkQuestHandler)
		r.HandleFunc("POST /linkquest/answer", s.linkQuestAnswerHandler)
		r.HandleFunc("POST /linkquest/shuffle", s.linkQuestShuffleHandler)
		r.HandleFunc("POST /linkquest/hint", s.linkQuestHintHandler)
		r.HandleFunc("GET /linkquest/result", s.linkQuestResultHandler)
		r.HandleFunc("GET /knowledgeweb", s.knowledgeWebHandler)
		r.HandleFunc("POST /knowledgeweb/place", s.knowledgeWebPlaceHandler)
		r.HandleFunc("POST /knowledgeweb/submit", s.knowledgeWebSubmitHandler)
		r.HandleFunc("GET /whatinthewiki", s.whatInTheWikiHandler)
		r.HandleFunc("POST /whatinthewiki/reveal", s.whatInTheWikiRevealHandler)
		r.HandleFunc("POST /whatinthewiki/guess", s.whatInTheWikiGuessHandler)
	})
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
