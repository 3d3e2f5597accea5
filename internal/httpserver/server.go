// internal/httpserver/server.go
//
// HTTP server wiring for the vault backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request logs).
//   - Public endpoints: "/", "/health", POST /vault/new, /stats/*.
//   - Session endpoints (require session token): /vault/state, /vault/number,
//     /vault/direction, /vault/try, /vault/restart, /vault/events.
//
// Notes:
//   - Each session owns one engine; the browser renders the returned pose.
//   - The secret combination never appears in a response. It is logged at
//     debug level by the engine for diagnostics.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/vault/internal/config"
	"github.com/robalobadob/vault/internal/seed"
	"github.com/robalobadob/vault/internal/session"
	"github.com/robalobadob/vault/internal/stats"
	"github.com/robalobadob/vault/internal/store"
	"github.com/robalobadob/vault/internal/vault"
)

// recordTimeout bounds a single best-effort write to the round log.
const recordTimeout = 2 * time.Second

// Server bundles router, session store and round log.
type Server struct {
	r      *chi.Mux
	cfg    config.Config
	store  store.Store
	rounds *stats.Store // nil disables the round log and /stats
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, rounds *stats.Store) *Server {
	s := &Server{r: chi.NewRouter(), cfg: cfg, store: st, rounds: rounds}

	// --- middleware ---
	s.r.Use(requestLogger()...)              // request IDs + access log
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           60 * 15,
	}))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"vault-go","endpoints":["/health","POST /vault/new","/vault/*","/stats/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Post("/vault/new", s.handleNew)
	s.r.Group(func(r chi.Router) {
		r.Use(s.requireSession())
		r.Get("/vault/state", s.handleState)
		r.Post("/vault/number", s.handleNumber)
		r.Post("/vault/direction", s.handleDirection)
		r.Post("/vault/try", s.handleTry)
		r.Post("/vault/restart", s.handleRestart)
		r.Get("/vault/events", s.handleEvents)
	})

	s.mountStats(s.r)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})

	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.r }

// ------------------------------ VAULT --------------------------------------

// newReq/Res payloads for POST /vault/new.
type newReq struct {
	Seed string `json:"seed"` // optional; reproducible secrets when ALLOW_SEEDED_GAMES=true
}
type newRes struct {
	SessionID string       `json:"sessionId"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	View      session.View `json:"view"`
}

// handleNew creates a session with a fresh engine and issues its token.
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	var req newReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	var src vault.Source = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if req.Seed != "" {
		if !s.cfg.AllowSeededGames {
			writeError(w, http.StatusBadRequest, "seeded_games_disabled", "seeded games are disabled")
			return
		}
		src = seed.Source(s.cfg.SeedSalt, req.Seed)
	}

	id := uuid.NewString()
	sess := session.New(id, src, session.Config{
		EngineOptions: s.engineOptions(id),
		Listeners:     []func(string, vault.Event){s.recordRound},
	})
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed", "could not create session")
		return
	}

	tok, exp, err := s.signToken(id)
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed", "could not issue token")
		return
	}
	s.setTokenCookie(w, tok, exp)
	log.Info().Str("session", id).Bool("seeded", req.Seed != "").Msg("session created")

	writeJSON(w, http.StatusCreated, newRes{SessionID: id, Token: tok, ExpiresAt: exp, View: sess.View()})
}

func (s *Server) engineOptions(id string) []vault.Option {
	opts := []vault.Option{
		vault.WithUnlockDelay(s.cfg.UnlockDelay),
		vault.WithLogger(log.With().Str("session", id).Logger()),
	}
	if s.cfg.AutoCheck {
		opts = append(opts, vault.WithAutoCheck())
	}
	return opts
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r).View())
}

type numberReq struct {
	Number int `json:"number"`
}

func (s *Server) handleNumber(w http.ResponseWriter, r *http.Request) {
	var req numberReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	if req.Number < vault.MinNumber || req.Number > vault.MaxNumber {
		writeError(w, http.StatusBadRequest, "invalid_number", "number must be between 1 and 9")
		return
	}
	writeJSON(w, http.StatusOK, currentSession(r).SelectNumber(req.Number))
}

type directionReq struct {
	Direction string `json:"direction"`
}

func (s *Server) handleDirection(w http.ResponseWriter, r *http.Request) {
	var req directionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	d, err := vault.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_direction", "direction must be clockwise or counterclockwise")
		return
	}
	v, err := currentSession(r).SubmitDirection(d)
	if err != nil {
		writeEngineError(w, err, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type tryRes struct {
	Result vault.MatchResult `json:"result"`
	View   session.View      `json:"view"`
}

func (s *Server) handleTry(w http.ResponseWriter, r *http.Request) {
	res, v, err := currentSession(r).Check()
	if err != nil {
		writeEngineError(w, err, v)
		return
	}
	writeJSON(w, http.StatusOK, tryRes{Result: res, View: v})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r).Restart())
}

type eventsRes struct {
	Events []session.Entry `json:"events"`
}

// handleEvents lets the client pick up events it did not trigger itself,
// notably the reset fired when the unlock display ends.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_after", "after must be a sequence number")
			return
		}
		after = n
	}
	writeJSON(w, http.StatusOK, eventsRes{Events: currentSession(r).EventsSince(after)})
}

// recordRound appends finished rounds to the round log (best effort).
func (s *Server) recordRound(id string, ev vault.Event) {
	if s.rounds == nil {
		return
	}
	var result stats.Result
	switch ev.Kind {
	case vault.EventUnlock:
		result = stats.ResultUnlock
	case vault.EventReject:
		result = stats.ResultReject
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.rounds.Record(ctx, stats.Round{
		SessionID:  id,
		Generation: ev.Generation,
		Result:     result,
		ElapsedMs:  ev.Elapsed.Milliseconds(),
		FinishedAt: ev.At,
	})
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("record round")
	}
}

// ------------------------------ responses ----------------------------------

type errorRes struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	View    *session.View `json:"view,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorRes{Error: code, Message: msg})
}

// writeEngineError maps engine input errors onto status codes. The view is
// included so the client can show the prompt without another round trip.
func writeEngineError(w http.ResponseWriter, err error, v session.View) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, vault.ErrNoNumberSelected):
		status, code = http.StatusUnprocessableEntity, "no_number_selected"
	case errors.Is(err, vault.ErrIncompleteCombination):
		status, code = http.StatusUnprocessableEntity, "incomplete_combination"
	case errors.Is(err, vault.ErrCombinationFull):
		status, code = http.StatusUnprocessableEntity, "combination_full"
	case errors.Is(err, vault.ErrVaultOpen):
		status, code = http.StatusLocked, "vault_open"
	case errors.Is(err, vault.ErrInvalidDirection):
		status, code = http.StatusBadRequest, "invalid_direction"
	}
	msg := v.Pose.Notice
	if msg == "" {
		msg = err.Error()
	}
	writeJSON(w, status, errorRes{Error: code, Message: msg, View: &v})
}
