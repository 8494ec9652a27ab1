// Package httpapi assembles the HTTP surface: shared middleware, operational
// endpoints, and the module handlers. Handlers stay thin; every guarded route
// runs through the enforcer inside its own module.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxgate/internal/platform/metrics"
	"taxgate/pkg/platform/httputil"
	"taxgate/pkg/platform/middleware/metadata"
	"taxgate/pkg/platform/middleware/request"
	"taxgate/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. Checks run with a short deadline so a
// hung dependency cannot wedge the health endpoint.
type HealthCheck func(ctx context.Context) error

// NewRouter builds the chi router with the standard middleware chain. The
// request ID, request time, and client metadata middlewares run first so
// every downstream log line and audit record can pick them off the context.
func NewRouter(m *metrics.Metrics, checks map[string]HealthCheck, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = "unhealthy"
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}
