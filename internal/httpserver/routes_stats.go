// internal/httpserver/routes_stats.go
//
// HTTP routes for the round outcome log.
// Exposes two endpoints under /stats:
//   - GET /stats/summary          → totals of rounds, unlocks and rejects
//   - GET /stats/leaderboard?limit → fastest unlocks (default 20, max 100)

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/vault/internal/stats"
)

const maxLeaderboardLimit = 100

// mountStats registers all /stats routes.
func (s *Server) mountStats(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.rounds == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_disabled", "round log is not configured")
		return
	}
	sum, err := s.rounds.Summary(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("stats summary")
		writeError(w, http.StatusInternalServerError, "server_error", "could not load summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// lbRes is returned by /stats/leaderboard.
type lbRes struct {
	Top []stats.LBRow `json:"top"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.rounds == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_disabled", "round log is not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	rows, err := s.rounds.Leaderboard(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("stats leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error", "could not load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Top: rows})
}
