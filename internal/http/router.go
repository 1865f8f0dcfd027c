package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/matchboard/internal/observability"
)

// RouterConfig holds the cross-cutting settings for NewRouter.
type RouterConfig struct {
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	// CORSAllowedOrigins enables CORS on /api when non-empty.
	CORSAllowedOrigins []string
}

// NewRouter wires the dashboard, API, health and metrics routes.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	pages := router.NewRoute().Subrouter()
	pages.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		pages.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	pages.HandleFunc("/", h.GetDashboard).Methods(http.MethodGet)
	pages.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)
	pages.HandleFunc("/api/matches", h.GetMatches).Methods(http.MethodGet)

	if len(cfg.CORSAllowedOrigins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}).Handler(router)
}
