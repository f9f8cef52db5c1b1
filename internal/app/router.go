package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cowork-market/cowork/internal/booking"
	"github.com/cowork-market/cowork/internal/observability"
	rbachttp "github.com/cowork-market/cowork/internal/rbac/http"
	"github.com/cowork-market/cowork/internal/session"
	"github.com/cowork-market/cowork/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionBackend session.Backend
	SessionHandler *session.Handler
	RolesHandler   *rbachttp.Handler
	BookingHandler *booking.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with cowork defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionBackend: params.SessionBackend,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}

		if params.SessionHandler != nil {
			r.Route("/session", params.SessionHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/admin/users/{userID}/roles", params.RolesHandler.MountRoutes)
		}
		if params.BookingHandler != nil {
			r.Route("/bookings", params.BookingHandler.MountRoutes)
		}
	})

	return r
}
