// Package api exposes preferences, the inbox, email stats and the live
// stream over HTTP.
package api

import (
	"context"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/emaillog"
	"bookverse-notifications/internal/identity"
	"bookverse-notifications/internal/inbox"
	"bookverse-notifications/internal/preferences"
	"bookverse-notifications/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Preferences    *preferences.Service
	Inbox          *inbox.Service
	Emails         *emaillog.Log
	Hub            *realtime.Hub
	Tokens         identity.TokenValidator
	Checks         map[string]HealthCheck
	AllowedOrigins []string
}

type Router struct {
	opts   Options
	logger logger.Logger
}

func NewRouter(opts Options, log logger.Logger) *Router {
	return &Router{opts: opts, logger: logger.Component(log, "api")}
}

func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(rt.logger))
	r.Use(CORS(rt.opts.AllowedOrigins))

	health := &healthHandler{checks: rt.opts.Checks}
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	prefs := &preferencesHandler{prefs: rt.opts.Preferences, logger: rt.logger}
	notifications := &notificationsHandler{inbox: rt.opts.Inbox, logger: rt.logger}
	email := &emailHandler{emails: rt.opts.Emails, prefs: rt.opts.Preferences, logger: rt.logger}
	stream := &streamHandler{hub: rt.opts.Hub, prefs: rt.opts.Preferences, inbox: rt.opts.Inbox, logger: rt.logger}

	r.Route("/v1", func(r chi.Router) {
		// the link in email footers carries its own proof
		r.Get("/email/unsubscribe", email.Unsubscribe)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(rt.opts.Tokens, rt.logger))

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", prefs.Get)
				r.Patch("/", prefs.Patch)
				r.Put("/", prefs.Replace)
				r.Put("/categories/{category}", prefs.UpdateCategory)
				r.Post("/device-tokens", prefs.RegisterToken)
				r.Delete("/device-tokens/{token}", prefs.UnregisterToken)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifications.List)
				r.Delete("/", notifications.ClearAll)
				r.Get("/counts", notifications.Counts)
				r.Get("/groups", notifications.Groups)
				r.Post("/read-all", notifications.MarkAllRead)
				r.Post("/{id}/read", notifications.MarkRead)
				r.Delete("/{id}", notifications.Delete)
				r.Post("/{id}/actions/{action}", notifications.Action)
			})

			r.Get("/email/stats", email.Stats)
			r.Get("/stream", stream.Serve)
		})
	})

	return r
}
