package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/anton/taskboard/internal/middleware"
	"github.com/anton/taskboard/internal/models"
	"github.com/anton/taskboard/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Handler holds the registration, login, and profile HTTP handlers.
type Handler struct {
	users    UserStore
	tokens   *TokenService
	log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(users UserStore, tokens *TokenService, log *logrus.Logger) *Handler {
	return &Handler{
		users:    users,
		tokens:   tokens,
		log:      log,
		validate: validator.New(),
	}
}

// Register creates a new user and returns its public projection. A taken
// username or email yields 400, whether caught before the insert or by the
// unique constraint when two registrations race.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.log.WithError(err).Error("hash password")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, hash)
	switch {
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, "username or email already in use")
		return
	case err != nil:
		h.log.WithError(err).Error("create user")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Login verifies credentials and returns a bearer token. Unknown username
// and wrong password produce the identical response so usernames can't be
// enumerated.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	case err != nil:
		h.log.WithError(err).Error("get user")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		h.log.WithError(err).Error("issue token")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Me returns the authenticated user's public projection.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// validationMessage flattens a validator error into a single client-facing
// line naming the first failing field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		switch f.Tag() {
		case "required":
			return f.Field() + " is required"
		case "email":
			return f.Field() + " must be a valid email address"
		case "min":
			return f.Field() + " is too short"
		case "max":
			return f.Field() + " is too long"
		}
		return f.Field() + " is invalid"
	}
	return "invalid request"
}
