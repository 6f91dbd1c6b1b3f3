// internal/httpserver/server.go
//
// HTTP server wiring for the vocabulary quiz.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, request logs).
//   - Public endpoints: "/", "/health", "/leaderboard", "/words/*".
//   - Session creation: POST /sessions returns a session ID and its bearer token.
//   - Session endpoints (require token): everything under /sessions/me.
//   - Mapping domain sentinel errors to JSON error bodies.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - The events websocket sits outside the timeout group; it lives as long as the client.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/motsrares/internal/config"
	"github.com/robalobadob/motsrares/internal/daily"
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/store"
	"github.com/robalobadob/motsrares/internal/words"
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Config   config.Config
	Bank     *words.Bank
	Board    *leaderboard.Board
	Sessions *store.Sessions
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server bundles the router and its dependencies.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	bank     *words.Bank
	board    *leaderboard.Board
	sessions *store.Sessions
	now      func() time.Time
	origin   string
	http     *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      d.Config,
		bank:     d.Bank,
		board:    d.Board,
		sessions: d.Sessions,
		now:      d.Now,
		origin:   d.Config.Server.Origin(),
	}
	s.http = &http.Server{Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	if s.now == nil {
		s.now = time.Now
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(cors(s.origin))

	timeout := chimw.Timeout(10 * time.Second)

	s.r.Group(func(r chi.Router) {
		r.Use(timeout)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"motsrares","endpoints":["/health","/leaderboard","/words/*","POST /sessions","/sessions/me/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		r.Get("/leaderboard", s.handleLeaderboard)
		s.mountWords(r)
		r.Post("/sessions", s.handleCreateSession)
	})

	// Session endpoints: REQUIRE TOKEN
	s.r.Route("/sessions/me", func(r chi.Router) {
		r.Use(s.requireSession())
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", s.handleState)
			r.Delete("/", s.handleEndSession)
			r.Post("/round", s.handleNewRound)
			r.Post("/answer", s.handleAnswer)
			r.Post("/mode", s.handleToggleMode)
			r.Post("/tick", s.handleTick)
			r.Post("/name", s.handleSubmitName)
			r.Post("/dismiss", s.handleDismiss)
		})
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ------------------------------ leaderboard --------------------------------

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.board.Entries()})
}

// -------------------------------- words ------------------------------------

func (s *Server) mountWords(r chi.Router) {
	r.Route("/words", func(r chi.Router) {
		// Flashcard: a random entry, definition included for tap-to-reveal.
		r.Get("/random", func(w http.ResponseWriter, r *http.Request) {
			e, err := s.bank.Sample(nil)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, e)
		})
		r.Get("/daily", func(w http.ResponseWriter, r *http.Request) {
			now := s.now()
			writeJSON(w, http.StatusOK, map[string]any{
				"date":  daily.DateKey(now),
				"entry": daily.WordOf(s.bank, now, s.cfg.Words.DailySalt),
			})
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"count":               s.bank.Len(),
				"distinctDefinitions": s.bank.DistinctDefinitions(),
				"categories":          s.bank.Categories(),
			})
		})
	})
}

// ------------------------------- sessions ----------------------------------

type createSessionRes struct {
	SessionID string        `json:"sessionId"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	State     session.State `json:"state"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// The controller lives exactly as long as its token.
	now := s.now()
	exp := now.Add(s.cfg.Auth.SessionTTL)
	c := s.sessions.Create(r.Context(), exp)
	tok, err := s.signSessionToken(c.ID(), now, exp)
	if err != nil {
		_ = s.sessions.Delete(r.Context(), c.ID())
		log.Error().Err(err).Msg("sign session token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	log.Info().Str("session", c.ID()).Msg("session created")
	writeJSON(w, http.StatusCreated, createSessionRes{
		SessionID: c.ID(),
		Token:     tok,
		ExpiresAt: exp,
		State:     c.State(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r).State())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	c := currentSession(r)
	if err := s.sessions.Delete(r.Context(), c.ID()); err != nil {
		writeErr(w, err)
		return
	}
	log.Info().Str("session", c.ID()).Msg("session ended")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	view, err := currentSession(r).NewRound()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerReq struct {
	Index *int `json:"index"`
}

type answerRes struct {
	Outcome game.Outcome  `json:"outcome"`
	State   session.State `json:"state"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	c := currentSession(r)
	out, err := c.SelectAnswer(*req.Index)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerRes{Outcome: out, State: c.State()})
}

func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	c := currentSession(r)
	if _, err := c.ToggleSurvival(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	c := currentSession(r)
	if _, err := c.TickClock(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

type nameReq struct {
	Name string `json:"name"`
}

type nameRes struct {
	Rank    int                 `json:"rank"`
	Entries []leaderboard.Entry `json:"entries"`
}

func (s *Server) handleSubmitName(w http.ResponseWriter, r *http.Request) {
	var req nameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	rank, err := currentSession(r).SubmitName(r.Context(), req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nameRes{Rank: rank, Entries: s.board.Entries()})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	c := currentSession(r)
	if err := c.DismissNameEntry(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErr maps a domain error to a status and error code.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidChoice):
		writeError(w, http.StatusBadRequest, "invalid_choice")
	case errors.Is(err, leaderboard.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid_name")
	case errors.Is(err, leaderboard.ErrNotRanked):
		writeError(w, http.StatusConflict, "not_ranked")
	case errors.Is(err, leaderboard.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "persistence_failure")
	case errors.Is(err, session.ErrNoRound):
		writeError(w, http.StatusConflict, "no_round")
	case errors.Is(err, session.ErrNoPendingEntry):
		writeError(w, http.StatusConflict, "no_pending_entry")
	case errors.Is(err, game.ErrTimerState):
		writeError(w, http.StatusConflict, "timer_state")
	case errors.Is(err, session.ErrClosed), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, game.ErrCorpusTooSmall), errors.Is(err, words.ErrNoAlternative), errors.Is(err, words.ErrEmptyCorpus):
		log.Error().Err(err).Msg("word bank cannot serve request")
		writeError(w, http.StatusInternalServerError, "corpus_too_small")
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
