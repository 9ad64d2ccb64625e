package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"identity-service/internal/config"
	"identity-service/internal/handler"
	"identity-service/internal/middleware"
	"identity-service/internal/model"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authHandler.Register)
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.Get("/{provider}", authHandler.ProviderRedirect)
			auth.Get("/{provider}/callback", authHandler.ProviderCallback)
		})

		// Protected routes carry no role restriction unless one is declared
		// here; declared roles are checked against the caller's claims.
		api.Route("/user", func(user chi.Router) {
			user.Use(authMiddleware.RequireAuth)
			user.Get("/me", userHandler.Me)
			user.Get("/{idOrEmail}", userHandler.Find)
			user.Delete("/{id}", userHandler.Delete)
			user.With(authMiddleware.RequireRoles(model.RoleAdmin)).Put("/{id}/block", userHandler.Block)
		})
	})

	return r
}
