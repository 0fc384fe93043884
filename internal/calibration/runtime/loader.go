// Package runtime serves calibration multipliers to scoring code. It loads
// the latest profile from a store, caches it briefly, and returns 1.0 for
// every lookup unless the profile passed its benchmark gate.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/data/cache"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// Status is the loader's view of the current profile
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusOff     Status = "OFF"
	StatusStale   Status = "STALE"
	StatusMissing Status = "MISSING"
)

const (
	// DefaultTTL bounds how long a loaded profile is reused
	DefaultTTL = 5 * time.Minute

	// DefaultStaleAfter is the profile age at which status turns STALE
	DefaultStaleAfter = 30 * 24 * time.Hour

	latestKey = "latest"
)

// Config controls caching, staleness, and the store circuit breaker
type Config struct {
	TTL             time.Duration `yaml:"ttl"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// DefaultConfig returns the loader defaults
func DefaultConfig() Config {
	return Config{
		TTL:             DefaultTTL,
		StaleAfter:      DefaultStaleAfter,
		BreakerFailures: 3,
		BreakerTimeout:  30 * time.Second,
	}
}

// Recorder receives loader events
type Recorder interface {
	LoaderCacheHit()
	LoaderCacheMiss()
	LoaderStatus(status string)
}

type nopRecorder struct{}

func (nopRecorder) LoaderCacheHit()     {}
func (nopRecorder) LoaderCacheMiss()    {}
func (nopRecorder) LoaderStatus(string) {}

// Report describes the loaded profile for display
type Report struct {
	Status    Status    `json:"status"`
	Reason    string    `json:"reason"`
	ProfileID string    `json:"profile_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Age       string    `json:"age,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// snapshot is one load result. apply is set only for a profile with a
// supported schema that passed its gate.
type snapshot struct {
	profile  *calibration.Profile
	apply    bool
	status   Status
	reason   string
	loadedAt time.Time
}

// Loader serves strategy weights and calibration factors
type Loader struct {
	store    persistence.ProfileStore
	config   Config
	cache    *cache.TTLCache[*snapshot]
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time
	recorder Recorder
	loadMu   sync.Mutex
}

// NewLoader creates a loader over store
func NewLoader(store persistence.ProfileStore, config Config) *Loader {
	def := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = def.BreakerFailures
	}

	failures := config.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "calibration-profile-store",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Profile store circuit breaker changed state")
		},
	})

	return &Loader{
		store:    store,
		config:   config,
		cache:    cache.NewTTLCache[*snapshot](1),
		breaker:  breaker,
		now:      func() time.Time { return time.Now().UTC() },
		recorder: nopRecorder{},
	}
}

// SetClock replaces the time source for the cache and staleness checks
func (l *Loader) SetClock(now func() time.Time) {
	l.now = now
	l.cache.SetClock(now)
}

// SetRecorder attaches an event sink
func (l *Loader) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	l.recorder = r
}

// Invalidate drops the cached profile; call it after writing a new one
func (l *Loader) Invalidate() {
	l.cache.Clear()
	log.Debug().Msg("Calibration profile cache invalidated")
}

// StrategyWeight returns the multiplier for a strategy in a regime, or 1.0
// when calibration is not applied or the pair was never observed
func (l *Loader) StrategyWeight(ctx context.Context, strategyName, regime string) float64 {
	snap := l.current(ctx)
	if !snap.apply {
		return 1.0
	}
	w, ok := snap.profile.StrategyWeights[strategyName][regime]
	if !ok {
		return 1.0
	}
	return w
}

// CalibrationFactor returns the confidence factor of the score's bucket, or
// 1.0 when calibration is not applied or the bucket lacks support
func (l *Loader) CalibrationFactor(ctx context.Context, score float64) float64 {
	snap := l.current(ctx)
	if !snap.apply {
		return 1.0
	}
	idx := calibration.BucketIndex(score)
	if idx >= len(snap.profile.CalibrationCurve) {
		return 1.0
	}
	b := snap.profile.CalibrationCurve[idx]
	if b.SampleSize < calibration.MinSampleSizePerBucket {
		return 1.0
	}
	return b.ConfidenceFactor
}

// Status reports the current profile state. Staleness is evaluated against
// the clock at call time.
func (l *Loader) Status(ctx context.Context) Report {
	snap := l.current(ctx)
	rep := Report{Status: snap.status, Reason: snap.reason, LoadedAt: snap.loadedAt}
	if snap.profile != nil {
		rep.ProfileID = snap.profile.ID
		rep.UpdatedAt = snap.profile.UpdatedAt
		age := snap.profile.Age(l.now())
		rep.Age = age.Round(time.Second).String()
		if snap.status == StatusActive && age > l.config.StaleAfter {
			rep.Status = StatusStale
			rep.Reason = fmt.Sprintf("profile is %s old (limit %s)", age.Round(time.Hour), l.config.StaleAfter)
		}
	}
	l.recorder.LoaderStatus(string(rep.Status))
	return rep
}

// Profile returns the loaded profile, which may be nil
func (l *Loader) Profile(ctx context.Context) *calibration.Profile {
	return l.current(ctx).profile
}

func (l *Loader) current(ctx context.Context) *snapshot {
	if snap, ok := l.cache.Get(latestKey); ok {
		l.recorder.LoaderCacheHit()
		return snap
	}

	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	if snap, ok := l.cache.Get(latestKey); ok {
		l.recorder.LoaderCacheHit()
		return snap
	}
	l.recorder.LoaderCacheMiss()

	snap, err := l.load(ctx)
	if err != nil {
		// store failures are not cached; the breaker throttles retries
		return snap
	}
	l.cache.Set(latestKey, snap, l.config.TTL)
	return snap
}

func (l *Loader) load(ctx context.Context) (*snapshot, error) {
	loadedAt := l.now()
	res, err := l.breaker.Execute(func() (interface{}, error) {
		p, err := l.store.Latest(ctx)
		if errors.Is(err, persistence.ErrNotFound) {
			return (*calibration.Profile)(nil), nil
		}
		return p, err
	})
	if err != nil {
		log.Warn().Err(err).Msg("Calibration profile store unavailable, calibration OFF")
		return &snapshot{status: StatusOff, reason: "profile store unavailable: " + err.Error(), loadedAt: loadedAt}, err
	}

	p, _ := res.(*calibration.Profile)
	snap := evaluate(p)
	snap.loadedAt = loadedAt

	ev := log.Info()
	if snap.status != StatusActive {
		ev = log.Warn()
	}
	ev.Str("status", string(snap.status)).Str("reason", snap.reason).Msg("Calibration profile loaded")
	return snap, nil
}

// evaluate applies the gating rules. The applied flag is checked before
// anything else in the profile is trusted.
func evaluate(p *calibration.Profile) *snapshot {
	switch {
	case p == nil:
		return &snapshot{status: StatusMissing, reason: "no calibration profile stored"}
	case !p.Benchmark.CalibrationApplied:
		reason := p.Benchmark.Reason
		if reason == "" {
			reason = "calibration not applied"
		}
		return &snapshot{profile: p, status: StatusOff, reason: reason}
	case p.SchemaVersion != calibration.SchemaVersion:
		return &snapshot{profile: p, status: StatusOff,
			reason: fmt.Sprintf("unsupported schema version %d", p.SchemaVersion)}
	}
	if err := p.Check(); err != nil {
		return &snapshot{profile: p, status: StatusOff, reason: err.Error()}
	}
	return &snapshot{profile: p, apply: true, status: StatusActive, reason: p.Benchmark.Reason}
}
