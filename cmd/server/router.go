package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dexten32/Task-Management-System-sub000/internal/api"
	apiMiddleware "github.com/dexten32/Task-Management-System-sub000/internal/api/middleware"
)

// routeDeps are the handlers and middleware the router mounts.
type routeDeps struct {
	logger *slog.Logger
	auth   *api.AuthHandler
	tasks  *api.TaskHandler
	users  *api.UserHandler
	authn  *apiMiddleware.AuthMiddleware
	limits *apiMiddleware.RateLimitMiddleware
}

// setupRouter builds the HTTP handler from the application's services.
func (app *application) setupRouter() http.Handler {
	return newRouter(routeDeps{
		logger: app.logger,
		auth:   api.NewAuthHandler(app.userService, app.logger),
		tasks:  api.NewTaskHandler(app.taskService, app.logger),
		users:  api.NewUserHandler(app.userService, app.logger),
		authn:  apiMiddleware.NewAuthMiddleware(app.jwtService),
		limits: apiMiddleware.NewRateLimitMiddleware(app.limiter, app.policies),
	})
}

func newRouter(d routeDeps) http.Handler {
	if d.logger == nil {
		d.logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(d.logger))

	// Requests rejected for a missing or bad token count per client IP.
	authn := d.authn.LimitRejections(d.limits.Global)

	r.Route("/api", func(r chi.Router) {
		// Public; limited per client IP, with a tighter budget for credentials.
		r.Group(func(r chi.Router) {
			r.Use(d.limits.Global)
			r.Use(d.limits.AuthRoute)
			r.Post("/auth/signup", d.auth.Signup)
			r.Post("/auth/login", d.auth.Login)
		})

		// Authenticated; the global limiter runs after auth so it keys on the user.
		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Use(d.limits.Global)

			r.Get("/tasks/recent", d.tasks.ListRecent)
			r.Get("/tasks/mine", d.tasks.ListMine)
			r.Get("/tasks/{id}", d.tasks.GetTask)
			r.Post("/tasks", d.tasks.CreateTask)
			r.Patch("/tasks/{id}/status", d.tasks.UpdateStatus)
			r.Put("/tasks/{id}/assignees", d.tasks.ReplaceAssignees)

			r.Post("/reports", d.tasks.RequestReport)
			r.Post("/users/{id}/approve", d.users.Approve)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(d.limits.Global)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("OK")); err != nil {
				d.logger.Error("Failed to write health check response", "error", err)
			}
		})
		r.Handle("/metrics", promhttp.Handler())
	})

	return r
}
