// Package api exposes the account manager over a local HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pysugar/launcher-accounts/internal/api/handlers"
	"github.com/pysugar/launcher-accounts/internal/api/middleware"
	"github.com/pysugar/launcher-accounts/internal/auth/token"
	"github.com/pysugar/launcher-accounts/internal/db"
	"github.com/pysugar/launcher-accounts/internal/profile"
)

// Deps are the services the API is built on. Events and Profile are optional.
type Deps struct {
	Tokens           *token.Manager
	Events           *db.EventLog
	Profile          *profile.Client
	AdminPassword    string
	RefreshLookahead time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AdminAuth(d.AdminPassword))

		r.Get("/accounts", handlers.AccountsAPIHandler(d.Tokens))
		r.Post("/accounts", handlers.AddAccountHandler(d.Tokens))
		r.Get("/accounts/active", handlers.ActiveAccountHandler(d.Tokens))
		r.Delete("/accounts/{uuid}", handlers.RemoveAccountHandler(d.Tokens))
		r.Post("/accounts/{uuid}/activate", handlers.SetActiveAccountHandler(d.Tokens))
		r.Post("/accounts/{uuid}/token", handlers.TokenHandler(d.Tokens))
		r.Post("/accounts/{uuid}/refresh", handlers.RefreshAccountHandler(d.Tokens))
		r.Post("/refresh", handlers.RefreshHandler(d.Tokens, d.RefreshLookahead))

		if d.Events != nil {
			r.Get("/accounts/{uuid}/events", handlers.EventsHandler(d.Events))
		}
		if d.Profile != nil {
			r.Get("/profile/skin", handlers.CurrentSkinHandler(d.Profile))
			r.Post("/profile/skin", handlers.UploadSkinHandler(d.Profile))
			r.Delete("/profile/skin", handlers.ResetSkinHandler(d.Profile))
		}
	})
	return r
}
