package handlers

import (
	"context"
	"net/http"

	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig carries the collaborators of the HTTP router. RateLimit,
// Metrics, MetricsHandler and Health are optional.
type RouterConfig struct {
	Handler *Handler
	Tokens  *auth.TokenManager
	// RateLimit guards the anonymous POST routes.
	RateLimit      middleware.RateLimitStore
	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Health         func(ctx context.Context) error
	Logger         *zap.Logger
}

// NewRouter builds the /v1 API plus /healthz and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writeErr := ErrorWriter(logger.Named("http_error"))
	h := cfg.Handler
	authn := auth.NewMiddleware(cfg.Tokens, writeErr)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger.Named("access")))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				logger.Warn("Health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	var limit func(http.Handler) http.Handler
	if cfg.RateLimit != nil {
		limit = middleware.NewRateLimiter(cfg.RateLimit, "public", writeErr, logger).Handler
	} else {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(public chi.Router) {
			public.Use(limit)
			public.Post("/access-codes/verify", h.VerifyAccessCode)
			public.Post("/job-postings", h.SubmitJobPosting)
			public.Post("/code-requests", h.SubmitCodeRequest)
			public.Post("/job-applications", h.SubmitJobApplication)
			public.Post("/client/login", h.ClientLogin)
		})

		r.Group(func(client chi.Router) {
			client.Use(authn.Require(auth.RoleClient))
			client.Get("/client/job-postings", h.ListOwnPostings)
			client.Post("/client/job-postings", h.CreateOwnPosting)
			client.Patch("/client/job-postings/{id}", h.UpdateOwnPosting)
			client.Delete("/client/job-postings/{id}", h.DeleteOwnPosting)
			client.Post("/client/logout", h.ClientLogout)
		})

		r.Route("/admin", func(admin chi.Router) {
			admin.Use(authn.Require(auth.RoleAdmin))
			admin.Get("/dashboard", h.Dashboard)
			admin.Get("/job-postings", h.ListJobPostings)
			admin.Patch("/job-postings/{id}/status", h.SetJobPostingStatus)
			admin.Get("/clients", h.ListClients)
			admin.Post("/clients", h.CreateClient)
			admin.Post("/clients/bulk", h.BulkGenerateClients)
			admin.Get("/clients/{id}", h.GetClientDetail)
			admin.Patch("/clients/{id}", h.UpdateClient)
			admin.Post("/clients/{id}/deactivate", h.DeactivateClient)
			admin.Post("/clients/{id}/regenerate-code", h.RegenerateAccessCode)
			admin.Get("/code-requests", h.ListCodeRequests)
			admin.Post("/code-requests/{id}/approve", h.ApproveCodeRequest)
			admin.Post("/code-requests/{id}/reject", h.RejectCodeRequest)
			admin.Get("/job-applications", h.ListJobApplications)
			admin.Post("/logout", h.AdminLogout)
		})
	})

	return r
}
