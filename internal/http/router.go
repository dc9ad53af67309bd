// Package httpapi assembles the public HTTP surface: shared middleware,
// operational endpoints, and the authenticated deposit and account routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	accounthandler "cashdesk/internal/account/handler"
	deposithandler "cashdesk/internal/deposit/handler"
	"cashdesk/internal/platform/metrics"
	"cashdesk/pkg/platform/httputil"
	authmw "cashdesk/pkg/platform/middleware/auth"
	"cashdesk/pkg/platform/middleware/metadata"
	request "cashdesk/pkg/platform/middleware/request"
	"cashdesk/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger    *slog.Logger
	Validator authmw.JWTValidator
	Deposits  *deposithandler.Handler
	Accounts  *accounthandler.Handler
	Registry  *prometheus.Registry
	Checks    map[string]HealthCheck
	// Clock overrides the request clock. Defaults to time.Now.
	Clock          func() time.Time
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", healthHandler(d.Checks))
	if d.Registry != nil {
		r.Handle("/metrics", metrics.Handler(d.Registry))
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Logger))
		d.Deposits.Register(r)
		d.Accounts.Register(r)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failing := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": failing,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
