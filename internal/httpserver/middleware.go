package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/vault/internal/session"
	"github.com/robalobadob/vault/internal/store"
)

// ctxSessionKey is the context key type for the resolved *session.Session.
type ctxSessionKey struct{}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a request-scoped zerolog logger and an access log line.
func requestLogger() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", d).
				Msg("request")
		}),
	}
}

// requireSession enforces a valid session token and injects the session into the context.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrCookie(r, s.cfg.CookieName)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
				return
			}
			id, err := s.parseToken(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
				return
			}
			sess, err := s.store.Get(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "session_expired", "start a new game")
				return
			}
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("load session")
				writeError(w, http.StatusInternalServerError, "internal", "could not load session")
				return
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// currentSession returns the session resolved by requireSession.
func currentSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*session.Session)
	return sess
}
