// Package httpapi assembles the HTTP surface: middleware stack, public
// endpoints, and the capability-gated platform routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carebridge/internal/access"
	accesshandler "carebridge/internal/access/handler"
	onboardinghandler "carebridge/internal/onboarding/handler"
	"carebridge/internal/platform/config"
	"carebridge/internal/platform/metrics"
	"carebridge/internal/platform/middleware"
	reviewhandler "carebridge/internal/review/handler"
	uploadshandler "carebridge/internal/uploads/handler"
	"carebridge/pkg/httputil"
)

// Dependencies carries everything the router needs. Handlers register their
// own routes; the router owns middleware ordering and gating.
type Dependencies struct {
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
	JWTValidator      middleware.JWTValidator
	RevocationChecker middleware.TokenRevocationChecker
	AdminToken        string

	Enforcer   *access.Enforcer
	Onboarding *onboardinghandler.Handler
	Access     *accesshandler.Handler
	Uploads    *uploadshandler.Handler
	Review     *reviewhandler.Handler

	// HealthCheck reports readiness of backing stores. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// NewRouter wires the full HTTP surface.
//
// Route groups, outermost first:
//   - operational endpoints (/healthz, /metrics), unauthenticated
//   - authenticated nurse surface (onboarding, access, uploads)
//   - authenticated and capability-gated platform surface
//   - admin surface behind the operator token
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(config.RequestTimeout))

	r.Get("/healthz", handleHealth(deps.HealthCheck))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Nurse-facing surface. The onboarding routes are allow-listed in the
	// enforcer config, so they stay reachable pre-approval.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(deps.JWTValidator, deps.RevocationChecker, deps.Logger))

		deps.Onboarding.Register(r)
		deps.Access.Register(r)
		deps.Uploads.Register(r)

		// Platform routes owned by the marketplace services. They mount here
		// so every one of them passes the capability gate.
		r.Group(func(r chi.Router) {
			r.Use(access.RequireCapability(deps.Enforcer, access.CapabilityDashboard))
			r.Get("/dashboard", notImplemented)
		})
		r.Group(func(r chi.Router) {
			r.Use(access.RequireCapability(deps.Enforcer, access.CapabilityRequests))
			r.Get("/requests", notImplemented)
		})
		r.Group(func(r chi.Router) {
			r.Use(access.RequireCapability(deps.Enforcer, access.CapabilityCreateRequest))
			r.Post("/requests", notImplemented)
		})
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Review.Register(r)
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// notImplemented backs routes whose real handlers live in the marketplace
// services; this service only decides whether the caller may reach them.
func notImplemented(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusNotImplemented, map[string]string{
		"message":  "endpoint served by the marketplace service",
		"endpoint": r.URL.Path,
	})
}
