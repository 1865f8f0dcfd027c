package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/lifecycle"
	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
	"github.com/kjstillabower/matchboard/internal/traffic"
	"github.com/kjstillabower/matchboard/internal/validation"
)

// MatchSource is implemented by service.MatchService.
type MatchSource interface {
	GetMatches(ctx context.Context, forceRefresh bool) models.Result
	RefreshAvailableIn() time.Duration
}

// HealthConfig holds the inputs of the health decision.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CredentialMissing is true when no provider key is configured.
	CredentialMissing bool
	// CachePing, when set, is called to check cache backend reachability.
	CachePing func(ctx context.Context) error
	Version   string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	matches          MatchSource
	healthConfig     *HealthConfig
	logger           *zap.Logger
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(matches MatchSource, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if healthConfig == nil {
		healthConfig = &HealthConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		matches:      matches,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

// GetDashboard handles GET /.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, false)
}

// PostRefresh handles POST /refresh: a forced refresh, then the dashboard.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, true)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, force bool) {
	res := h.fetch(r.Context(), force)
	view := newDashboardView(res, h.matches.RefreshAvailableIn(), h.now())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := dashboardTemplate.Execute(w, view); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render dashboard", zap.Error(err))
	}
}

// GetMatches handles GET /api/matches?refresh=<bool>.
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	force, err := validation.RefreshFlag(r.URL.Query().Get("refresh"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REFRESH", err.Error())
		return
	}
	res := h.fetch(r.Context(), force)
	res.Matches = models.SortByKickoff(res.Matches)
	writeJSON(w, http.StatusOK, res)
}

// fetch runs the coordinator and feeds the outcome into the error-rate window.
func (h *Handler) fetch(ctx context.Context, force bool) models.Result {
	res := h.matches.GetMatches(ctx, force)
	if res.Failed() {
		traffic.Record(traffic.Error)
	} else {
		traffic.Record(traffic.Success)
	}
	return res
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"provider": "healthy"}
	if result.status == "degraded" {
		checks["provider"] = "unhealthy"
	}
	if h.healthConfig.CachePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.healthConfig.CachePing(ctx); err == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
		cancel()
	}
	version := h.healthConfig.Version
	if version == "" {
		version = "dev"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "matchboard",
		"version":   version,
		"checks":    checks,
		"uptime":    lifecycle.Uptime().Truncate(time.Second).String(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > credential missing > error-rate degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig.CredentialMissing {
		return healthResult{"degraded", http.StatusServiceUnavailable, "credential_missing"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
