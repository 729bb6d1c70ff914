package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 60 * time.Second

// NewRouter mounts the calculator and lead endpoints. Only the POST endpoints
// are rate limited. requestTimeout must cover a full lead sync, or POST /leads
// loses its result; zero uses a 60s default.
func NewRouter(
	projections *ProjectionHandler,
	leads *LeadHandler,
	limiter *RateLimiter,
	requestTimeout time.Duration,
	logger *zap.Logger,
) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(requestTimeout))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter, logger))
		r.Post("/churn/calculate", projections.Calculate)
		r.Post("/leads", leads.Submit)
	})

	return router
}
