package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/anton/taskboard/internal/auth"
	"github.com/anton/taskboard/internal/middleware"
	"github.com/anton/taskboard/internal/tasks"
)

// Store is everything the HTTP surface needs from persistence. The
// Postgres store satisfies it; tests swap in a fake.
type Store interface {
	auth.UserStore
	tasks.Store
}

// New assembles the full router: public auth routes, bearer-protected
// profile and task routes, and the health endpoint.
func New(log *logrus.Logger, tokens *auth.TokenService, st Store, allowedOrigins []string) http.Handler {
	authHandler := auth.NewHandler(st, tokens, log)
	taskHandler := tasks.NewHandler(st, log)
	requireAuth := middleware.RequireAuth(tokens, st, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Healthy"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.With(requireAuth).Get("/users/me", authHandler.Me)

	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", taskHandler.Create)
		r.Get("/", taskHandler.List)
		r.Get("/{id}", taskHandler.Get)
		r.Put("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	return r
}
