package routes

import (
	"net/http"

	"github.com/arjun-computer-geek/saas-demo/app"
	"github.com/arjun-computer-geek/saas-demo/handlers"
	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if deps.Config.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(deps.Config.Server.RequestTimeout))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	checks := make(map[string]handlers.Pinger)
	for name, check := range deps.HealthChecks() {
		checks[name] = check
	}
	health := handlers.NewHealthHandler(checks, logger)
	authHandler := handlers.NewAuthHandler(deps.Auth, handlers.NewCookieSettings(deps.Config.Auth), logger)
	orgHandler := handlers.NewOrgHandler(deps.Lifecycle, deps.Memberships, deps.Audit, logger)
	memberHandler := handlers.NewMemberHandler(deps.Memberships, deps.Invites, logger)

	authn := deps.AuthMiddleware
	roles := deps.RoleMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.With(deps.LoginLimiter.Limit).Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.With(authn.Optional).Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/password", authHandler.HandleChangePassword)
		})
	})

	// Organization lifecycle (super-admin only)
	r.Route("/orgs", func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Use(roles.RequireSuper)

		r.Post("/", orgHandler.HandleCreate)
		r.Get("/", orgHandler.HandleList)
		r.Post("/users/{userId}/password", orgHandler.HandleSetUserPassword)
		r.Post("/users/{userId}/disable", orgHandler.HandleSetUserDisabled)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", orgHandler.HandleGet)
			r.Delete("/", orgHandler.HandleDelete)
			r.Post("/disable", orgHandler.HandleDisable)
			r.Post("/enable", orgHandler.HandleEnable)
			r.Post("/undelete", orgHandler.HandleUndelete)
			r.Get("/admins", orgHandler.HandleListAdmins)
			r.Post("/admins", orgHandler.HandleAddAdmin)
			r.Delete("/admins/{userId}", orgHandler.HandleRemoveAdmin)
			r.Get("/members", orgHandler.HandleListMembers)
			r.Get("/audit", orgHandler.HandleListAudit)
		})
	})

	r.Route("/users", func(r chi.Router) {
		// Invite redemption is public, the token is the credential
		r.Get("/invite/{token}", memberHandler.HandleGetInvite)
		r.Post("/invite/{token}/accept", memberHandler.HandleAcceptInvite)

		// Org administration
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Use(roles.Authorize(models.RoleAdmin))

			r.Get("/members", memberHandler.HandleListMembers)
			r.Post("/members/{userId}/role", memberHandler.HandleUpdateRole)
			r.Post("/members/{userId}/disable", memberHandler.HandleSetDisabled)
			r.Get("/invites", memberHandler.HandleListInvites)
			r.Post("/invite", memberHandler.HandleCreateInvite)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
