package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/persistence"
)

type fakeStore struct {
	profile *calibration.Profile
	err     error
	calls   int
}

func (f *fakeStore) Save(_ context.Context, p *calibration.Profile) error {
	f.profile = p
	return nil
}

func (f *fakeStore) Latest(context.Context) (*calibration.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return nil, persistence.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeStore) Get(ctx context.Context, _ string) (*calibration.Profile, error) {
	return f.Latest(ctx)
}

func (f *fakeStore) ClearLatest(context.Context) error {
	f.profile = nil
	return nil
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

var created = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func appliedProfile() *calibration.Profile {
	curve := make([]calibration.Bucket, calibration.BucketCount)
	for i := range curve {
		curve[i] = calibration.Bucket{
			ScoreBucketMin:   i * calibration.BucketWidth,
			ScoreBucketMax:   i*calibration.BucketWidth + calibration.BucketWidth - 1,
			ConfidenceFactor: 1.0,
		}
	}
	curve[5].SampleSize, curve[5].WinRate, curve[5].ConfidenceFactor = 892, 0.58, 1.08
	curve[7].SampleSize, curve[7].WinRate, curve[7].ConfidenceFactor = 150, 0.7, 1.2

	return &calibration.Profile{
		ID:            "p1",
		SchemaVersion: calibration.SchemaVersion,
		CreatedAt:     created,
		UpdatedAt:     created,
		Benchmark: calibration.BenchmarkComparison{
			WinRateBase: 0.52, WinRateCalibrated: 0.56, CalibrationApplied: true, Reason: "beats",
		},
		StrategyWeights:  calibration.Weights{"trend_follow": {"normal": 1.3}},
		CalibrationCurve: curve,
	}
}

func newLoader(store persistence.ProfileStore) (*Loader, *testClock) {
	clk := &testClock{t: created.Add(time.Hour)}
	l := NewLoader(store, DefaultConfig())
	l.SetClock(clk.Now)
	return l, clk
}

func TestLoader_Missing(t *testing.T) {
	l, _ := newLoader(&fakeStore{})
	ctx := context.Background()

	assert.Equal(t, 1.0, l.StrategyWeight(ctx, "trend_follow", "normal"))
	assert.Equal(t, 1.0, l.CalibrationFactor(ctx, 55))
	rep := l.Status(ctx)
	assert.Equal(t, StatusMissing, rep.Status)
	assert.Empty(t, rep.ProfileID)
}

func TestLoader_Active(t *testing.T) {
	l, _ := newLoader(&fakeStore{profile: appliedProfile()})
	ctx := context.Background()

	assert.Equal(t, 1.3, l.StrategyWeight(ctx, "trend_follow", "normal"))
	assert.Equal(t, 1.0, l.StrategyWeight(ctx, "trend_follow", "high_vol"))
	assert.Equal(t, 1.0, l.StrategyWeight(ctx, "breakout", "normal"))

	assert.Equal(t, 1.08, l.CalibrationFactor(ctx, 55))
	assert.Equal(t, 1.0, l.CalibrationFactor(ctx, 75), "under-supported bucket")
	assert.Equal(t, 1.0, l.CalibrationFactor(ctx, 100))

	rep := l.Status(ctx)
	assert.Equal(t, StatusActive, rep.Status)
	assert.Equal(t, "p1", rep.ProfileID)
}

func TestLoader_NotAppliedIgnoresLeftoverAdjustments(t *testing.T) {
	p := appliedProfile()
	p.Benchmark.CalibrationApplied = false
	p.Benchmark.Reason = "calibration rejected"
	l, _ := newLoader(&fakeStore{profile: p})
	ctx := context.Background()

	assert.Equal(t, 1.0, l.StrategyWeight(ctx, "trend_follow", "normal"))
	assert.Equal(t, 1.0, l.CalibrationFactor(ctx, 55))
	rep := l.Status(ctx)
	assert.Equal(t, StatusOff, rep.Status)
	assert.Equal(t, "calibration rejected", rep.Reason)
}

func TestLoader_SchemaMismatchIsOff(t *testing.T) {
	p := appliedProfile()
	p.SchemaVersion = calibration.SchemaVersion + 1
	l, _ := newLoader(&fakeStore{profile: p})
	ctx := context.Background()

	assert.Equal(t, 1.0, l.StrategyWeight(ctx, "trend_follow", "normal"))
	assert.Equal(t, 1.0, l.CalibrationFactor(ctx, 55))
	rep := l.Status(ctx)
	assert.Equal(t, StatusOff, rep.Status)
	assert.Contains(t, rep.Reason, "schema version")
}

func TestLoader_StaleKeepsMultipliers(t *testing.T) {
	l, clk := newLoader(&fakeStore{profile: appliedProfile()})
	ctx := context.Background()
	clk.t = created.Add(31 * 24 * time.Hour)

	rep := l.Status(ctx)
	assert.Equal(t, StatusStale, rep.Status)
	assert.Contains(t, rep.Reason, "old")
	assert.Equal(t, 1.3, l.StrategyWeight(ctx, "trend_follow", "normal"))
	assert.Equal(t, 1.08, l.CalibrationFactor(ctx, 55))
}

func TestLoader_CacheTTLAndInvalidate(t *testing.T) {
	store := &fakeStore{profile: appliedProfile()}
	l, clk := newLoader(store)
	ctx := context.Background()

	l.StrategyWeight(ctx, "trend_follow", "normal")
	l.CalibrationFactor(ctx, 55)
	l.Status(ctx)
	assert.Equal(t, 1, store.calls)

	clk.t = clk.t.Add(DefaultTTL)
	l.Status(ctx)
	assert.Equal(t, 2, store.calls, "expired entry reloads")

	require.NoError(t, store.ClearLatest(ctx))
	assert.Equal(t, StatusActive, l.Status(ctx).Status, "cached until invalidated")
	l.Invalidate()
	assert.Equal(t, StatusMissing, l.Status(ctx).Status)
	assert.Equal(t, 3, store.calls)
}

func TestLoader_StoreFailureTripsBreaker(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	l, _ := newLoader(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, l.StrategyWeight(ctx, "trend_follow", "normal"))
	}
	assert.Equal(t, 3, store.calls)

	rep := l.Status(ctx)
	assert.Equal(t, StatusOff, rep.Status)
	assert.Contains(t, rep.Reason, "circuit breaker is open")
	assert.Equal(t, 3, store.calls, "open breaker short-circuits the store")
}

type countingRecorder struct {
	hits, misses int
	statuses     []string
}

func (r *countingRecorder) LoaderCacheHit()       { r.hits++ }
func (r *countingRecorder) LoaderCacheMiss()      { r.misses++ }
func (r *countingRecorder) LoaderStatus(s string) { r.statuses = append(r.statuses, s) }

func TestLoader_Recorder(t *testing.T) {
	l, _ := newLoader(&fakeStore{profile: appliedProfile()})
	rec := &countingRecorder{}
	l.SetRecorder(rec)
	ctx := context.Background()

	l.StrategyWeight(ctx, "trend_follow", "normal")
	l.Status(ctx)

	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, []string{"ACTIVE"}, rec.statuses)
}
