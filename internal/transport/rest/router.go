package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/rmaulana/iam-service/internal/accessprofile"
	"github.com/rmaulana/iam-service/internal/auth"
	"github.com/rmaulana/iam-service/internal/modcontrol"
	"github.com/rmaulana/iam-service/internal/permission"
	"github.com/rmaulana/iam-service/internal/transport/middleware"
	"github.com/rmaulana/iam-service/internal/transport/swagger"
	"github.com/rmaulana/iam-service/internal/user"
)

// Requirement sets per route, evaluated by the permission engine after the
// session middleware. A route touching several entity types lists every one
// of them; all must hold.
var (
	reqListProfiles = permission.Requirements{
		permission.EntityAccessProfile: permission.MustBits("R"),
	}
	reqCreateProfile = permission.Requirements{
		permission.EntityAccessProfile: permission.MustBits("C"),
	}
	reqUpdateProfile = permission.Requirements{
		permission.EntityAccessProfile: permission.MustBits("U"),
	}
	reqDeleteProfile = permission.Requirements{
		permission.EntityAccessProfile: permission.MustBits("D"),
	}
	reqListProfileModules = permission.Requirements{
		permission.EntityAccessProfileModule: permission.MustBits("R"),
		permission.EntityAccessProfile:       permission.MustBits("R"),
	}
	reqAddProfileModule = permission.Requirements{
		permission.EntityAccessProfileModule: permission.MustBits("C"),
		permission.EntityAccessProfilePerms:  permission.MustBits("C"),
		permission.EntityAccessProfile:       permission.MustBits("R"),
	}
	reqReplaceProfileModules = permission.Requirements{
		permission.EntityAccessProfileModule: permission.MustBits("CD"),
		permission.EntityAccessProfilePerms:  permission.MustBits("C"),
		permission.EntityAccessProfile:       permission.MustBits("R"),
	}
	reqRemoveProfileModule = permission.Requirements{
		permission.EntityAccessProfileModule: permission.MustBits("D"),
		permission.EntityAccessProfile:       permission.MustBits("R"),
	}
	reqReadProfilePermissions = permission.Requirements{
		permission.EntityAccessProfilePerms:     permission.MustBits("R"),
		permission.EntityAccessProfileModule:    permission.MustBits("R"),
		permission.EntityAccessProfile:          permission.MustBits("R"),
		permission.EntityCustomPermission:       permission.MustBits("R"),
		permission.EntityAccessProfileCustomPer: permission.MustBits("R"),
	}
	reqWriteProfilePermissions = permission.Requirements{
		permission.EntityAccessProfilePerms:     permission.MustBits("U"),
		permission.EntityCustomPermission:       permission.MustBits("R"),
		permission.EntityAccessProfile:          permission.MustBits("R"),
		permission.EntityAccessProfileCustomPer: permission.MustBits("CD"),
	}
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	evaluator middleware.Evaluator,
	userHandler *user.Handler,
	profileHandler *accessprofile.Handler,
	permissionHandler *permission.Handler,
	moduleHandler *modcontrol.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// Everything below requires an authenticated session. The session
		// check always answers first, so a missing token is 401 even on
		// routes that would then be 403.
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)
			pr.Use(middleware.UserContext)

			pr.Get("/users/me", userHandler.GetCurrentUser)

			pr.Route("/modules", func(mr chi.Router) {
				mr.Get("/", moduleHandler.ListModules)
				mr.Get("/{moduleKey}", moduleHandler.GetModule)
			})

			pr.Route("/profiles", func(apr chi.Router) {
				apr.With(middleware.RequirePermissions(evaluator, reqListProfiles)).
					Get("/", profileHandler.ListProfiles)
				apr.With(middleware.RequirePermissions(evaluator, reqCreateProfile)).
					Post("/", profileHandler.CreateProfile)

				apr.Route("/{profileKey}", func(sr chi.Router) {
					sr.With(middleware.RequirePermissions(evaluator, reqListProfiles)).
						Get("/", profileHandler.GetProfile)
					sr.With(middleware.RequirePermissions(evaluator, reqUpdateProfile)).
						Put("/", profileHandler.UpdateProfile)
					sr.With(middleware.RequirePermissions(evaluator, reqDeleteProfile)).
						Delete("/", profileHandler.DeleteProfile)

					sr.Route("/modules", func(mr chi.Router) {
						mr.With(middleware.RequirePermissions(evaluator, reqListProfileModules)).
							Get("/", profileHandler.GetProfileModules)
						mr.With(middleware.RequirePermissions(evaluator, reqAddProfileModule)).
							Post("/", profileHandler.AddProfileModule)
						mr.With(middleware.RequirePermissions(evaluator, reqReplaceProfileModules)).
							Put("/", profileHandler.ReplaceProfileModules)
						mr.With(middleware.RequirePermissions(evaluator, reqRemoveProfileModule)).
							Delete("/{moduleKey}", profileHandler.RemoveProfileModule)
					})

					sr.Route("/permissions", func(gr chi.Router) {
						gr.With(middleware.RequirePermissions(evaluator, reqReadProfilePermissions)).
							Get("/", permissionHandler.GetProfilePermissions)
						gr.With(middleware.RequirePermissions(evaluator, reqWriteProfilePermissions)).
							Put("/", permissionHandler.UpdateProfilePermissions)
					})
				})
			})
		})
	})
}
