// Package tracker accumulates token usage reported by the live session and
// estimates the running cost. It is pure observability: the cost-threshold
// check logs a warning and has no control-flow effect.
package tracker

import (
	"fmt"
	"log/slog"
	"math"
)

// Default per-1k-token rates in USD and the cost warning threshold.
const (
	DefaultInputRate        = 0.00025
	DefaultOutputRate       = 0.0005
	DefaultWarningThreshold = 10.0
)

// Tracker accumulates prompt/response token counts for one session.
type Tracker struct {
	name             string
	inputTokens      int
	outputTokens     int
	inputRate        float64
	outputRate       float64
	warningThreshold float64
	log              *slog.Logger
}

// New creates a tracker with the default rates.
func New(name string, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		name:             name,
		inputRate:        DefaultInputRate,
		outputRate:       DefaultOutputRate,
		warningThreshold: DefaultWarningThreshold,
		log:              log,
	}
}

// AddUsage accumulates one usage report and warns once the estimated cost
// crosses the threshold.
func (t *Tracker) AddUsage(promptTokens, responseTokens int) {
	t.inputTokens += promptTokens
	t.outputTokens += responseTokens

	if cost := t.EstimatedCost(); cost > t.warningThreshold {
		t.log.Warn("estimated cost exceeded threshold",
			"threshold_usd", t.warningThreshold,
			"current_usd", cost,
		)
	}
}

// TotalTokens returns the combined input and output token count.
func (t *Tracker) TotalTokens() int {
	return t.inputTokens + t.outputTokens
}

// EstimatedCost returns the running cost estimate in USD, rounded to
// micro-dollar precision.
func (t *Tracker) EstimatedCost() float64 {
	costIn := float64(t.inputTokens) / 1000 * t.inputRate
	costOut := float64(t.outputTokens) / 1000 * t.outputRate
	return math.Round((costIn+costOut)*1e6) / 1e6
}

// Summary renders a one-line usage report.
func (t *Tracker) Summary() string {
	return fmt.Sprintf("[%s] Input: %d tokens, Output: %d tokens, Total: %d tokens, Estimated Cost: $%.6f",
		t.name, t.inputTokens, t.outputTokens, t.TotalTokens(), t.EstimatedCost())
}
