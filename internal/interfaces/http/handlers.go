package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/calibration/runtime"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// Calibration is the runtime loader as seen by the server. Invalidate drops
// the cached profile so the next lookup reads the store again.
type Calibration interface {
	Status(ctx context.Context) runtime.Report
	StrategyWeight(ctx context.Context, strategy, regime string) float64
	CalibrationFactor(ctx context.Context, score float64) float64
	Invalidate()
}

// HealthChecker reports database health; nil when no database is configured
type HealthChecker interface {
	Health(ctx context.Context) persistence.HealthCheck
}

type handlers struct {
	calibration Calibration
	health      HealthChecker
	version     string
	started     time.Time
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// Health handles GET /health
func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		Calibration: h.calibration.Status(r.Context()),
	}
	if h.health != nil {
		hc := h.health.Health(r.Context())
		resp.Database = &hc
		if !hc.Healthy {
			resp.Status = "degraded"
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CalibrationStatus handles GET /calibration/status
func (h *handlers) CalibrationStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.calibration.Status(r.Context()))
}

// Reload handles POST /calibration/reload. It invalidates the cached profile
// and answers with the status of a fresh load.
func (h *handlers) Reload(w http.ResponseWriter, r *http.Request) {
	h.calibration.Invalidate()
	rep := h.calibration.Status(r.Context())
	log.Info().
		Str("request_id", requestIDFrom(r.Context())).
		Str("status", string(rep.Status)).
		Str("profile_id", rep.ProfileID).
		Msg("Calibration profile reloaded")
	h.writeJSON(w, http.StatusOK, rep)
}

// Weight handles GET /calibration/weight?strategy=&regime=
func (h *handlers) Weight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategyName := strings.TrimSpace(q.Get("strategy"))
	regime := strings.TrimSpace(q.Get("regime"))
	if strategyName == "" || regime == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_parameter", "strategy and regime are required")
		return
	}

	ctx := r.Context()
	h.writeJSON(w, http.StatusOK, WeightResponse{
		Strategy: strategyName,
		Regime:   regime,
		Weight:   h.calibration.StrategyWeight(ctx, strategyName, regime),
		Status:   string(h.calibration.Status(ctx).Status),
	})
}

// Factor handles GET /calibration/factor?score=
func (h *handlers) Factor(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("score")
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 || score > 100 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_score", "score must be a number between 0 and 100")
		return
	}

	ctx := r.Context()
	h.writeJSON(w, http.StatusOK, FactorResponse{
		Score:  score,
		Factor: h.calibration.CalibrationFactor(ctx, score),
		Status: string(h.calibration.Status(ctx).Status),
	})
}

// NotFound handles unknown routes
func (h *handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}
