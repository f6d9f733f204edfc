package auth

import (
	"context"
	"net/http"
	"strings"

	"invest-calendar/internal/storage"
)

type contextKey struct{}

var userKey contextKey

// UserFrom extracts the authenticated user from a request context.
func UserFrom(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(userKey).(storage.User)
	return user, ok
}

// WithUser returns a context carrying user. Exported for handler tests.
func WithUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// BearerToken pulls the token out of an Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// RequireUser rejects requests without a valid session.
func (s *Service) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r.Context(), BearerToken(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalUser attaches the user when a valid token is present and passes
// the request through otherwise.
func (s *Service) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := s.Authenticate(r.Context(), BearerToken(r)); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}
