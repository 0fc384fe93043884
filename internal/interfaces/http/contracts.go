package http

import (
	"time"

	"github.com/sawpanic/swingrun/internal/calibration/runtime"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string                   `json:"status"` // "healthy" or "degraded"
	Version     string                   `json:"version"`
	Timestamp   time.Time                `json:"timestamp"`
	Uptime      string                   `json:"uptime"`
	Calibration runtime.Report           `json:"calibration"`
	Database    *persistence.HealthCheck `json:"database,omitempty"`
}

// WeightResponse is returned by GET /calibration/weight
type WeightResponse struct {
	Strategy string  `json:"strategy"`
	Regime   string  `json:"regime"`
	Weight   float64 `json:"weight"`
	Status   string  `json:"status"`
}

// FactorResponse is returned by GET /calibration/factor
type FactorResponse struct {
	Score  float64 `json:"score"`
	Factor float64 `json:"factor"`
	Status string  `json:"status"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
