package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressIndicator reports progress of a long-running loop. Every step is
// logged through zerolog; when a writer is attached a single-line bar with
// ETA is also rendered to it (typically stderr on a terminal).
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	failed    int
	startTime time.Time
	out       io.Writer
	now       func() time.Time
}

// NewProgressIndicator creates a new progress indicator. out may be nil.
func NewProgressIndicator(name string, total int, out io.Writer) *ProgressIndicator {
	return &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
		out:       out,
		now:       time.Now,
	}
}

// Step records one finished item; ok=false counts it as skipped
func (pi *ProgressIndicator) Step(item string, ok bool) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.current++
	if !ok {
		pi.failed++
	}

	log.Debug().
		Str("task", pi.name).
		Str("item", item).
		Bool("ok", ok).
		Int("done", pi.current).
		Int("total", pi.total).
		Msg("Progress")

	if pi.out != nil {
		fmt.Fprint(pi.out, pi.render(item))
	}
}

// ETA estimates remaining time from the average pace so far
func (pi *ProgressIndicator) ETA() time.Duration {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.eta()
}

func (pi *ProgressIndicator) eta() time.Duration {
	if pi.current == 0 || pi.total <= pi.current {
		return 0
	}
	elapsed := pi.now().Sub(pi.startTime)
	per := elapsed / time.Duration(pi.current)
	return per * time.Duration(pi.total-pi.current)
}

// Done returns completed and skipped counts
func (pi *ProgressIndicator) Done() (completed, skipped int) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.current, pi.failed
}

// Finish completes the progress indicator
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := pi.now().Sub(pi.startTime)
	if pi.out != nil {
		fmt.Fprintf(pi.out, "\r\033[K%s completed (%d items, %d skipped, %v)\n",
			pi.name, pi.current, pi.failed, duration.Round(time.Millisecond))
	}
	log.Info().
		Str("task", pi.name).
		Int("items", pi.current).
		Int("skipped", pi.failed).
		Dur("duration", duration).
		Msg("Task completed")
}

// Fail marks the progress as failed
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.out != nil {
		fmt.Fprintf(pi.out, "\r\033[K%s failed: %s\n", pi.name, reason)
	}
	log.Error().Str("task", pi.name).Str("reason", reason).Int("done", pi.current).Msg("Task failed")
}

func (pi *ProgressIndicator) render(item string) string {
	var output strings.Builder
	output.WriteString("\r\033[K")
	output.WriteString(pi.name)

	if pi.total > 0 {
		const barWidth = 20
		filled := barWidth * pi.current / pi.total
		output.WriteString(" [")
		output.WriteString(strings.Repeat("█", filled))
		output.WriteString(strings.Repeat("░", barWidth-filled))
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", pi.current, pi.total, float64(pi.current)/float64(pi.total)*100))

		if eta := pi.eta(); eta > 0 {
			output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
		}
	}
	if item != "" {
		output.WriteString(" - ")
		output.WriteString(item)
	}
	return output.String()
}

// StepLogger provides step-by-step progress logging for pipelines
type StepLogger struct {
	name        string
	steps       []string
	currentStep int
	stepStart   time.Time
	startTime   time.Time
	stepTimes   []time.Duration
}

// NewStepLogger creates a new step logger for pipeline operations
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		name:        name,
		steps:       steps,
		currentStep: -1,
		startTime:   time.Now(),
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep begins a new pipeline step, completing the previous one
func (sl *StepLogger) StartStep(stepName string) {
	stepIndex := -1
	for i, step := range sl.steps {
		if step == stepName {
			stepIndex = i
			break
		}
	}
	if stepIndex == -1 {
		log.Warn().Str("step", stepName).Msg("Unknown pipeline step")
		return
	}

	sl.CompleteStep()
	sl.currentStep = stepIndex
	sl.stepStart = time.Now()

	log.Info().
		Str("pipeline", sl.name).
		Str("step", stepName).
		Int("step_number", stepIndex+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting pipeline step")
}

// CompleteStep marks the current step as completed
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 || sl.stepTimes[sl.currentStep] != 0 {
		return
	}
	d := time.Since(sl.stepStart)
	if d == 0 {
		d = time.Nanosecond
	}
	sl.stepTimes[sl.currentStep] = d

	log.Debug().
		Str("pipeline", sl.name).
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", d).
		Msg("Pipeline step completed")
}

// Finish completes the step logger and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	total := time.Since(sl.startTime)

	log.Info().Str("pipeline", sl.name).Dur("total_duration", total).Msg("Pipeline completed")
	for i, step := range sl.steps {
		log.Debug().
			Str("step", step).
			Dur("duration", sl.stepTimes[i]).
			Msgf("  %d. %s", i+1, step)
	}
}

// Fail marks the step logger as failed
func (sl *StepLogger) Fail(reason string) {
	step := "unknown"
	if sl.currentStep >= 0 {
		step = sl.steps[sl.currentStep]
	}
	log.Error().
		Str("pipeline", sl.name).
		Str("failed_step", step).
		Int("total_steps", len(sl.steps)).
		Str("reason", reason).
		Msg("Pipeline failed")
}

// StepDurations returns recorded durations keyed by step name
func (sl *StepLogger) StepDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(sl.steps))
	for i, step := range sl.steps {
		out[step] = sl.stepTimes[i]
	}
	return out
}
