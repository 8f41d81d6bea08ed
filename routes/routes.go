package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/eloboost/app"
	"github.com/upb/eloboost/handlers"
	"github.com/upb/eloboost/middleware"
)

const (
	defaultRequestTimeout = 60 * time.Second

	checkTokenPath            = "/api/auth/check-token"
	checkTokenPreflightMaxAge = 86400
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	// CORS middleware. check-token is probed cross-origin by embedding
	// clients, so it answers any origin with credentials.
	r.Use(corsByPath(checkTokenPath,
		cors.Handler(cors.Options{
			AllowOriginFunc:  func(*http.Request, string) bool { return true },
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           checkTokenPreflightMaxAge,
		}),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           300,
		}),
	))

	security := deps.Security
	health := handlers.NewHealthHandler(deps.UserService, deps.Providers, deps.Logger)
	securityHandler := handlers.NewSecurityHandler(deps.Permissions, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.UserService, deps.Presence, deps.Logger)
	authHandler := deps.AuthHandler()

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Role-restricted API paths are guarded by the permission table
		r.Use(security.ForRoute(deps.Permissions))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/{provider}/login", authHandler.HandleLogin)
			r.Get("/{provider}/callback", authHandler.HandleCallback)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/check-token", authHandler.HandleCheckToken)
			r.Options("/check-token", authHandler.HandleCheckToken)
			r.Get("/status/{user_id}", authHandler.HandleStatus)

			r.Group(func(r chi.Router) {
				r.Use(security.Guard(middleware.AnyAuthenticated()))
				r.Get("/user", authHandler.HandleUser)
				r.Get("/me", authHandler.HandleMe)
			})
		})

		r.Route("/security", func(r chi.Router) {
			r.Use(security.Soft)
			r.Get("/check-role", securityHandler.HandleCheckRole)
			r.Get("/access-check/*", securityHandler.HandleAccessCheck)
		})

		r.Get("/owner/users", userHandler.HandleListUsers)
		r.Get("/owner/online", userHandler.HandleOnline)
		r.Get("/booster/profile", userHandler.HandleProfile)
		r.Get("/client/profile", userHandler.HandleProfile)

		r.NotFound(handlers.NewAppShell("", deps.Logger).ServeHTTP)
	})

	// Page routes are served by the frontend; the table guards them first
	shell := security.ForRoute(deps.Permissions)(handlers.NewAppShell(cfg.Frontend.IndexFile, deps.Logger))
	r.NotFound(shell.ServeHTTP)

	return r
}

// corsByPath applies special to requests for path and fallback to the rest
func corsByPath(path string, special, fallback func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		specialNext := special(next)
		fallbackNext := fallback(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSuffix(r.URL.Path, "/") == path {
				specialNext.ServeHTTP(w, r)
				return
			}
			fallbackNext.ServeHTTP(w, r)
		})
	}
}
