// Package report turns a metric's summary rows into min/max/mean
// statistics and a pass/fail verdict, and renders them for the terminal and
// as per-configuration plots.
package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mosregress/internal/compare"
)

// DefaultThreshold is the highest passing rms_error, in percent.
const DefaultThreshold = 100.0

// Stats summarizes rms_error over the configurations of one metric.
// Min, Max and Mean are NaN when no configuration has a value.
type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int // configurations with a value
}

// Summarize reduces rows, skipping NaN values.
func Summarize(rows []compare.SummaryRow) Stats {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(r.RMSError) {
			vals = append(vals, r.RMSError)
		}
	}
	if len(vals) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  stat.Mean(vals, nil),
		Count: len(vals),
	}
}

// Clamped caps every statistic at 100 for display.
func (s Stats) Clamped() Stats {
	return Stats{Min: clamp(s.Min), Max: clamp(s.Max), Mean: clamp(s.Mean), Count: s.Count}
}

func clamp(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

// Verdict is the outcome of one metric.
type Verdict struct {
	Passed    bool
	Max       float64 // the value compared
	Threshold float64
}

// Decide compares the max error with threshold. clampFirst compares the
// display value instead, under which nothing above 100 can fail. NaN fails.
func Decide(s Stats, threshold float64, clampFirst bool) Verdict {
	v := s.Max
	if clampFirst {
		v = clamp(v)
	}
	return Verdict{Passed: v <= threshold, Max: v, Threshold: threshold}
}

// Line is the log line of a metric's statistics. metric may be empty for
// single-metric suites.
func Line(device, metric string, s Stats) string {
	c := s.Clamped()
	return fmt.Sprintf("# Device %s min error: %.2f, max error: %.2f, mean error %.2f",
		subject(device, metric), c.Min, c.Max, c.Mean)
}

// VerdictLine is the log line of a metric's verdict.
func VerdictLine(device, metric string, v Verdict) string {
	if v.Passed {
		return fmt.Sprintf("# Device %s has passed regression.", subject(device, metric))
	}
	return fmt.Sprintf("# Device %s has failed regression. Needs more analysis.", subject(device, metric))
}

func subject(device, metric string) string {
	if metric == "" {
		return device
	}
	return device + " " + metric
}
