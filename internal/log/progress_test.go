package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressIndicatorRendersAndCounts(t *testing.T) {
	var buf bytes.Buffer
	pi := NewProgressIndicator("calibrate", 4, &buf)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pi.startTime = base
	pi.now = func() time.Time { return base.Add(10 * time.Second) }

	pi.Step("AAPL", true)
	pi.Step("MSFT", false)

	done, skipped := pi.Done()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, skipped)
	// 10s for two items, two to go
	assert.Equal(t, 10*time.Second, pi.ETA())

	out := buf.String()
	assert.Contains(t, out, "calibrate [")
	assert.Contains(t, out, "2/4 (50.0%)")
	assert.Contains(t, out, "MSFT")

	pi.Finish()
	assert.Contains(t, buf.String(), "calibrate completed (2 items, 1 skipped")
}

func TestProgressIndicatorWithoutWriter(t *testing.T) {
	pi := NewProgressIndicator("quiet", 1, nil)
	pi.Step("x", true)
	pi.Finish()
	assert.Equal(t, time.Duration(0), pi.ETA())
}

func TestStepLogger(t *testing.T) {
	sl := NewStepLogger("calibration", []string{"load", "train", "persist"})
	sl.StartStep("load")
	sl.StartStep("bogus")
	sl.StartStep("train")
	sl.Finish()

	d := sl.StepDurations()
	assert.Greater(t, d["load"], time.Duration(0))
	assert.Greater(t, d["train"], time.Duration(0))
	assert.Equal(t, time.Duration(0), d["persist"])
}
