package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anton/taskboard/internal/models"
	"github.com/anton/taskboard/internal/store"
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

const userKey contextKey = "user"

// TokenValidator checks a bearer token and returns its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// UserSource resolves a token subject to a stored user.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// RequireAuth validates the Authorization bearer token, resolves its
// subject to a user, and injects the user into the request context. A
// missing or invalid token, or a subject deleted since issuance, all
// produce the same 401.
func RequireAuth(tokens TokenValidator, users UserSource, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			subject, err := tokens.Validate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			user, err := users.GetUserByUsername(r.Context(), subject)
			switch {
			case errors.Is(err, store.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			case err != nil:
				log.WithError(err).Error("resolve identity")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated user stored by RequireAuth.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
