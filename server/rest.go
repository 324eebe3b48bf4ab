package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
	"github.com/umputun/wikidaily/pkg/games"
	"github.com/umputun/wikidaily/pkg/games/knowledgeweb"
	"github.com/umputun/wikidaily/pkg/games/linkquest"
	"github.com/umputun/wikidaily/pkg/games/whatinthewiki"
	"github.com/umputun/wikidaily/pkg/state"
)

// SessionHeader carries the reader's session id, rabbit holes are tracked per session
const SessionHeader = "X-Session-ID"

const (
	defaultRecommendations = 10
	maxRecommendations     = 50
)

// puzzle generation failures, rendered as 503 so the client retries with a new request
var unavailable = []error{games.ErrNoFeaturedArticle, linkquest.ErrNotEnoughLinks,
	knowledgeweb.ErrNotEnoughConnections, whatinthewiki.ErrNoLead}

// moves not allowed in the current game state
var conflicts = []error{linkquest.ErrGameComplete, linkquest.ErrNotFinished, knowledgeweb.ErrGameComplete,
	knowledgeweb.ErrSlotLocked, knowledgeweb.ErrTitleLocked, whatinthewiki.ErrGameComplete,
	whatinthewiki.ErrFullyRevealed, whatinthewiki.ErrAlreadyGuessed}

// invalid input
var badRequests = []error{knowledgeweb.ErrUnknownPosition, knowledgeweb.ErrNotInPool, knowledgeweb.ErrIncomplete,
	whatinthewiki.ErrNotAnOption, state.ErrInvalidAmount, state.ErrInvalidFrequency}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    s.now().UTC(),
		"dateKey": daily.DateKey(s.now()),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// searchHandler runs a full-text search, GET /search?q=
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.Reader.Search(r.Context(), r.URL.Query().Get("q")))
}

// articleHandler renders an article and records the view, GET /article/{title}?source=
func (s *Server) articleHandler(w http.ResponseWriter, r *http.Request) {
	title := extract.NormalizeTitle(r.PathValue("title"))
	if title == "" {
		renderError(w, r, errors.New("article title is required"), http.StatusBadRequest)
		return
	}
	session := s.session(w, r)
	renderJSON(w, r, http.StatusOK, s.Reader.Article(r.Context(), session, title, r.URL.Query().Get("source")))
}

// homeHandler returns the home feed of a day
func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	renderJSON(w, r, http.StatusOK, s.Reader.Home(r.Context(), date))
}

// recommendationsHandler suggests articles similar to the recent history, GET /recommendations?limit=
func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecommendations
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			renderError(w, r, fmt.Errorf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecommendations)
	}
	renderJSON(w, r, http.StatusOK, s.Reader.Recommendations(r.Context(), limit))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.History.List(r.Context()))
}

func (s *Server) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.History.Clear(r.Context()); err != nil {
		lgr.Printf("[ERROR] STORAGE_ERROR: failed to clear history: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rabbitHolesHandler lists the rabbit holes of the session named by the session header
func (s *Server) rabbitHolesHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get(SessionHeader)
	if session == "" {
		renderError(w, r, fmt.Errorf("%s header is required", SessionHeader), http.StatusBadRequest)
		return
	}
	holes, err := s.RabbitHoles.List(r.Context(), session)
	if err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: failed to list rabbit holes: %v", err)
		holes = []domain.RabbitHole{}
	}
	renderJSON(w, r, http.StatusOK, holes)
}

// reminderView adds the due flag to the settings
type reminderView struct {
	domain.ReminderSettings
	Due bool `json:"due"`
}

func (s *Server) reminderHandler(w http.ResponseWriter, r *http.Request) {
	settings := s.Reminders.Settings(r.Context())
	renderJSON(w, r, http.StatusOK, reminderView{ReminderSettings: settings, Due: state.Due(settings)})
}

func (s *Server) saveReminderHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReminderSettings
	if !decode(w, r, &req) {
		return
	}
	settings, err := s.Reminders.Save(r.Context(), req)
	if err != nil {
		s.renderGameError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, reminderView{ReminderSettings: settings, Due: state.Due(settings)})
}

func (s *Server) ackReminderHandler(w http.ResponseWriter, r *http.Request) {
	settings := s.Reminders.Acknowledge(r.Context())
	renderJSON(w, r, http.StatusOK, reminderView{ReminderSettings: settings, Due: state.Due(settings)})
}

func (s *Server) feedSettingsHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.FeedSettings.Get(r.Context()))
}

func (s *Server) saveFeedSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.FeedSettings
	if !decode(w, r, &req) {
		return
	}
	if err := s.FeedSettings.Save(r.Context(), req); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: failed to save feed settings: %v", err)
	}
	renderJSON(w, r, http.StatusOK, req)
}

// streaksHandler reports the streak of every game as of the requested day
func (s *Server) streaksHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	today := daily.DateKey(date)
	res := map[string]domain.Streak{}
	for _, game := range []string{linkquest.GameName, knowledgeweb.GameName, whatinthewiki.GameName} {
		res[game] = s.Streaks.Get(r.Context(), game, today)
	}
	renderJSON(w, r, http.StatusOK, res)
}

func (s *Server) linkQuestHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.LinkQuest.Today(r.Context(), date) })
}

// linkQuestAnswerHandler answers the current card, body {"linked": true}
func (s *Server) linkQuestAnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Linked *bool `json:"linked"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Linked == nil {
		renderError(w, r, errors.New("linked is required"), http.StatusBadRequest)
		return
	}
	s.play(w, r, func(date time.Time) (any, error) { return s.LinkQuest.Answer(r.Context(), date, *req.Linked) })
}

func (s *Server) linkQuestShuffleHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.LinkQuest.Shuffle(r.Context(), date) })
}

func (s *Server) linkQuestHintHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.LinkQuest.Hint(r.Context(), date) })
}

func (s *Server) linkQuestResultHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.LinkQuest.Result(r.Context(), date) })
}

func (s *Server) knowledgeWebHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.KnowledgeWeb.Today(r.Context(), date) })
}

// knowledgeWebPlaceHandler puts a connector into a slot, body {"position": "top-left", "title": "..."}
func (s *Server) knowledgeWebPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position string `json:"position"`
		Title    string `json:"title"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.play(w, r, func(date time.Time) (any, error) {
		return s.KnowledgeWeb.Place(r.Context(), date, req.Position, req.Title)
	})
}

// knowledgeWebSubmitHandler grades the board, body {"connections": {"top-left": "...", ...}}
func (s *Server) knowledgeWebSubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connections map[string]string `json:"connections"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.play(w, r, func(date time.Time) (any, error) {
		return s.KnowledgeWeb.Submit(r.Context(), date, req.Connections)
	})
}

func (s *Server) whatInTheWikiHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.WhatInTheWiki.Today(r.Context(), date) })
}

func (s *Server) whatInTheWikiRevealHandler(w http.ResponseWriter, r *http.Request) {
	s.play(w, r, func(date time.Time) (any, error) { return s.WhatInTheWiki.Reveal(r.Context(), date) })
}

// whatInTheWikiGuessHandler submits a guess, body {"guess": "..."}
func (s *Server) whatInTheWikiGuessHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Guess string `json:"guess"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Guess) == "" {
		renderError(w, r, errors.New("guess is required"), http.StatusBadRequest)
		return
	}
	s.play(w, r, func(date time.Time) (any, error) { return s.WhatInTheWiki.Guess(r.Context(), date, req.Guess) })
}

// play resolves the requested day, runs the game call and renders its result or error
func (s *Server) play(w http.ResponseWriter, r *http.Request, fn func(date time.Time) (any, error)) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	res, err := fn(date)
	if err != nil {
		s.renderGameError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, res)
}

// renderGameError maps service errors to HTTP statuses
func (s *Server) renderGameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isAny(err, unavailable):
		lgr.Printf("[WARN] couldn't load puzzle for %s: %v", r.URL.Path, err)
		renderError(w, r, fmt.Errorf("couldn't load puzzle: %w", err), http.StatusServiceUnavailable)
	case isAny(err, conflicts):
		renderError(w, r, err, http.StatusConflict)
	case isAny(err, badRequests):
		renderError(w, r, err, http.StatusBadRequest)
	default:
		lgr.Printf("[ERROR] %s failed: %v", r.URL.Path, err)
		renderError(w, r, err, http.StatusInternalServerError)
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// date returns the UTC day of the date query parameter, now when absent
func (s *Server) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.now(), true
	}
	date, err := daily.ParseDateKey(raw)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid date, expected YYYY-MM-DD: %w", err), http.StatusBadRequest)
		return time.Time{}, false
	}
	return date, true
}

// session returns the session id of the request, a new one is issued in the response header
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}
