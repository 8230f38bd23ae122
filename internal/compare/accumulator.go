package compare

import (
	"fmt"

	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/table"
)

// Sink persists the accumulated state of one metric. Each call carries the
// complete state so far; sinks overwrite rather than append.
type Sink interface {
	Write(m device.Metric, breakdown *table.Frame, summary []SummaryRow) error
}

// Accumulator collects breakdown frames and summary rows for one metric and
// writes them through its sinks every CheckpointEvery configurations and on
// Flush.
type Accumulator struct {
	metric device.Metric
	every  int
	sinks  []Sink

	frames  []*table.Frame
	summary []SummaryRow
	dirty   bool
}

// NewAccumulator returns an accumulator for m. every <= 0 disables
// intermediate checkpoints.
func NewAccumulator(m device.Metric, every int, sinks ...Sink) *Accumulator {
	return &Accumulator{metric: m, every: every, sinks: sinks}
}

// Add records one configuration.
func (a *Accumulator) Add(frame *table.Frame, row SummaryRow) error {
	a.frames = append(a.frames, frame)
	a.summary = append(a.summary, row)
	a.dirty = true
	if a.every > 0 && len(a.summary)%a.every == 0 {
		logging.CompareDebug("%s: checkpoint after %d configurations", a.metric.ID, len(a.summary))
		return a.Flush()
	}
	return nil
}

// Flush writes the current state through every sink. A metric with no
// configurations still writes its (empty) outputs once.
func (a *Accumulator) Flush() error {
	if !a.dirty && len(a.summary) > 0 {
		return nil
	}
	breakdown := a.Breakdown()
	for _, s := range a.sinks {
		if err := s.Write(a.metric, breakdown, a.summary); err != nil {
			return fmt.Errorf("metric %s: %w", a.metric.ID, err)
		}
	}
	a.dirty = false
	return nil
}

// Breakdown stacks every configuration's frame.
func (a *Accumulator) Breakdown() *table.Frame {
	if len(a.frames) == 0 {
		return table.New(nil)
	}
	out := table.ConcatRows(a.frames...)
	out.ResetIndex()
	return out
}

// Summary returns a copy of the summary rows.
func (a *Accumulator) Summary() []SummaryRow {
	out := make([]SummaryRow, len(a.summary))
	copy(out, a.summary)
	return out
}

// Rows counts breakdown rows.
func (a *Accumulator) Rows() int {
	n := 0
	for _, f := range a.frames {
		n += f.Len()
	}
	return n
}
