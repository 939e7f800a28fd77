package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/connectivity"
	"checkin/internal/platform/metrics"
	"checkin/internal/platform/middleware"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/platform/middleware/metadata"
	"checkin/pkg/platform/middleware/requesttime"
)

// RouterConfig carries what the router needs besides the handler.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.HTTP
	Gatherer       prometheus.Gatherer
	AdminValidator middleware.AdminValidator
	Signal         connectivity.Signal
	RequestTimeout time.Duration
}

// NewRouter wires middleware, the terminal routes, /metrics and /healthz.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware(nil))
	r.Use(middleware.Logger(cfg.Logger, cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":       "ok",
			"connectivity": cfg.Signal.Status().String(),
		})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.ContentTypeJSON)
		h.Register(r, middleware.RequireAdmin(cfg.AdminValidator, cfg.Logger))
	})
	return r
}
