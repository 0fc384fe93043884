// Package metrics exposes Prometheus instruments for backtests, calibration
// runs, the profile loader, and the HTTP surface. Each Registry owns its own
// prometheus.Registry; nothing is registered globally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

const namespace = "swingrun"

// Loader statuses tracked by the status gauge
var loaderStatuses = []string{"ACTIVE", "OFF", "STALE", "MISSING"}

// Registry holds all SwingRun metrics
type Registry struct {
	reg *prometheus.Registry

	BacktestRuns     *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	BacktestTrades   *prometheus.CounterVec

	CalibrationRuns     *prometheus.CounterVec
	CalibrationSamples  prometheus.Gauge
	CalibrationDuration prometheus.Histogram

	LoaderCache         *prometheus.CounterVec
	LoaderCacheHitRatio prometheus.Gauge
	LoaderStatusGauge   *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers every instrument
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		BacktestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_runs_total",
				Help:      "Completed backtest runs by symbol",
			},
			[]string{"symbol"},
		),
		BacktestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_duration_seconds",
				Help:      "Wall time of a backtest run",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		BacktestTrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_trades_total",
				Help:      "Closed backtest trades by strategy, exit reason and result",
			},
			[]string{"strategy", "exit_reason", "result"},
		),

		CalibrationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calibration_runs_total",
				Help:      "Calibration runs by gate decision",
			},
			[]string{"applied"},
		),
		CalibrationSamples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "calibration_samples",
				Help:      "Samples collected by the most recent calibration run",
			},
		),
		CalibrationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "calibration_duration_seconds",
				Help:      "Wall time of a calibration run",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),

		LoaderCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_cache_requests_total",
				Help:      "Profile loader cache lookups by result",
			},
			[]string{"result"},
		),
		LoaderCacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_cache_hit_ratio",
				Help:      "Profile loader cache hit ratio (0.0 to 1.0)",
			},
		),
		LoaderStatusGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_status",
				Help:      "1 for the loader's current calibration status, 0 otherwise",
			},
			[]string{"status"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	r.reg.MustRegister(
		r.BacktestRuns,
		r.BacktestDuration,
		r.BacktestTrades,
		r.CalibrationRuns,
		r.CalibrationSamples,
		r.CalibrationDuration,
		r.LoaderCache,
		r.LoaderCacheHitRatio,
		r.LoaderStatusGauge,
		r.HTTPRequests,
		r.HTTPDuration,
	)
	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// BacktestTradeClosed counts one closed trade
func (r *Registry) BacktestTradeClosed(strategy, exitReason string, won bool) {
	result := "loss"
	if won {
		result = "win"
	}
	r.BacktestTrades.WithLabelValues(strategy, exitReason, result).Inc()
}

// BacktestRunFinished records a completed run
func (r *Registry) BacktestRunFinished(symbol string, trades int, elapsed time.Duration) {
	r.BacktestRuns.WithLabelValues(symbol).Inc()
	r.BacktestDuration.Observe(elapsed.Seconds())
	log.Debug().Str("symbol", symbol).Int("trades", trades).Dur("elapsed", elapsed).Msg("Backtest run recorded")
}

// CalibrationFinished records a calibration run and its gate decision
func (r *Registry) CalibrationFinished(samples int, applied bool, elapsed time.Duration) {
	r.CalibrationRuns.WithLabelValues(strconv.FormatBool(applied)).Inc()
	r.CalibrationSamples.Set(float64(samples))
	r.CalibrationDuration.Observe(elapsed.Seconds())
}

// LoaderCacheHit counts a profile served from cache
func (r *Registry) LoaderCacheHit() {
	r.LoaderCache.WithLabelValues("hit").Inc()
	r.updateCacheHitRatio()
}

// LoaderCacheMiss counts a profile load from the store
func (r *Registry) LoaderCacheMiss() {
	r.LoaderCache.WithLabelValues("miss").Inc()
	r.updateCacheHitRatio()
}

// LoaderStatus marks status as current
func (r *Registry) LoaderStatus(status string) {
	for _, s := range loaderStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		r.LoaderStatusGauge.WithLabelValues(s).Set(v)
	}
}

// ObserveRequest records one HTTP request
func (r *Registry) ObserveRequest(route string, code int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (r *Registry) updateCacheHitRatio() {
	hits := counterValue(r.LoaderCache, "hit")
	misses := counterValue(r.LoaderCache, "miss")
	if total := hits + misses; total > 0 {
		r.LoaderCacheHitRatio.Set(hits / total)
	}
}

func counterValue(vec *prometheus.CounterVec, label string) float64 {
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
