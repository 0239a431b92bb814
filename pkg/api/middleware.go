package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gamelab-hdl/gamelab/pkg/api/store"
)

type contextKey string

const userContextKey contextKey = "user"

// sessionCookieName carries the session token for browser clients.
// Programmatic clients send the same token as a Bearer credential.
const sessionCookieName = "gamelab_session"

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireAuth resolves the request's session token to a user and
// injects the user into the request context, or rejects the request.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		userID, ok := s.sessions.Resolve(token)
		if !ok {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid or expired session"})

			return
		}

		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// The user behind the token is gone; the session is
				// no longer valid.
				s.sessions.Revoke(token)

				writeJSON(w, http.StatusUnauthorized,
					errorResponse{"session revoked"})

				return
			}

			// Storage failures are not an authorization verdict. The
			// session stays intact for when the store recovers.
			s.log.WithError(err).Error("Failed to load session user")

			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"internal error"})

			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionToken extracts the session token from the Authorization header
// or the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return h[7:]
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// userFromContext extracts the authenticated user from the request context.
func userFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)

	return user
}
