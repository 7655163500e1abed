package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idhub/internal/ratelimit"
	"idhub/pkg/platform/middleware"
)

// RouterConfig carries the credentials guarding the review endpoints.
type RouterConfig struct {
	AdminToken    string
	JWTSigningKey []byte
	// SubmitLimiter throttles the public submission endpoint; nil disables it.
	SubmitLimiter *ratelimit.Middleware
	// Health reports readiness of backing services; nil means always ready.
	Health func() error
}

// NewRouter wires all endpoints. Submission and retrieval are public; accept
// and reject require admin credentials.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestTime)
	r.Use(middleware.RequestMetadata)
	r.Use(middleware.Logger(h.logger))

	if cfg.SubmitLimiter != nil {
		r.Group(func(public chi.Router) {
			public.Use(cfg.SubmitLimiter.Handler)
			public.Post("/registration/{formName}/requests", h.handleSubmit)
		})
	} else {
		r.Post("/registration/{formName}/requests", h.handleSubmit)
	}
	r.Get("/requests/{id}", h.handleGet)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(cfg.AdminToken, cfg.JWTSigningKey, h.logger))
		admin.Post("/requests/{id}/accept", h.handleAccept)
		admin.Post("/requests/{id}/reject", h.handleReject)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
