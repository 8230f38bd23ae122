// Package compare computes the per-configuration error between simulated
// and measured curves and accumulates the results.
//
// For one configuration the simulated table is left-joined with the measured
// block on the sweep value. Each level contributes a relative error in
// percent; the mean absolute level error of a row is "error", and the RMS of
// "error" over the rows is the configuration's rms_error.
package compare

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/sheet"
	"mosregress/internal/sweep"
	"mosregress/internal/table"
)

// DefaultCurrentFloor is the lowest current compared, in amperes.
const DefaultCurrentFloor = 5e-12

// Breakdown tag and result column names.
const (
	ColLength   = "length"
	ColWidth    = "width"
	ColTemp     = "temp"
	ColError    = "error"
	ColRMSError = "rms_error"
)

// SummaryRow is the outcome of one configuration.
type SummaryRow struct {
	Temp     int
	Width    float64
	Length   float64
	RMSError float64
}

// Input is one metric of one device.
type Input struct {
	Setup    *device.Setup
	Metric   device.Metric
	Measured *table.Frame // the metric's measured table; nil or empty when no workbook
	Points   []sweep.Point
	Results  sweep.Results
	Dir      string // <root>/<device>
}

// Outcome is the full comparison of one metric.
type Outcome struct {
	Metric  device.Metric
	Summary []SummaryRow
	Rows    int // breakdown rows
}

// Observer sees each configuration's breakdown as it is computed.
type Observer func(m device.Metric, p sweep.Point, breakdown *table.Frame) error

// Calculator compares configurations and hands results to an Accumulator.
type Calculator struct {
	Floor           float64
	CheckpointEvery int
	Sinks           []Sink
	Observe         Observer // optional
}

// Compare processes every configuration in point order. A configuration
// whose result file is missing stops the comparison with an error wrapping
// fs.ErrNotExist.
func (c *Calculator) Compare(ctx context.Context, in Input) (*Outcome, error) {
	m := in.Metric
	layout, ok := in.Setup.Suite.Table(m.Table)
	if !ok {
		return nil, fmt.Errorf("metric %s: unknown measured table %q", m.ID, m.Table)
	}
	floor := c.Floor
	if floor <= 0 {
		floor = DefaultCurrentFloor
	}

	acc := NewAccumulator(m, c.CheckpointEvery, c.Sinks...)
	timer := logging.StartTimer(logging.CategoryCompare, "compare "+in.Setup.Family.Name+" "+m.ID)
	defer timer.Stop()

	for i, p := range in.Points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := resultPath(in, p)
		if err != nil {
			return nil, err
		}
		sim, err := table.LoadCSV(path)
		if err != nil {
			return nil, fmt.Errorf("%s %s configuration %d: %w", in.Setup.Family.Name, m.ID, i, err)
		}
		measured, err := sheet.MeasuredBlock(in.Measured, layout, m, in.Setup.LevelsFor(m), m.Block(i))
		if err != nil {
			return nil, fmt.Errorf("%s %s configuration %d: %w", in.Setup.Family.Name, m.ID, i, err)
		}

		frame, row := Configuration(sim, measured, Params{
			Metric: m,
			Levels: len(in.Setup.LevelsFor(m)),
			Point:  p,
			Floor:  floor,
		})
		logging.CompareDebug("%s %s %s: %d rows, rms_error=%s",
			in.Setup.Family.Name, m.ID, p, frame.Len(), table.FormatFloat(row.RMSError))
		if c.Observe != nil {
			if err := c.Observe(m, p, frame); err != nil {
				logging.Get(logging.CategoryCompare).Warn("%s %s %s: %v", in.Setup.Family.Name, m.ID, p, err)
			}
		}
		if err := acc.Add(frame, row); err != nil {
			return nil, err
		}
	}
	if err := acc.Flush(); err != nil {
		return nil, err
	}
	return &Outcome{Metric: m, Summary: acc.Summary(), Rows: acc.Rows()}, nil
}

func resultPath(in Input, p sweep.Point) (string, error) {
	m := in.Metric
	expected := filepath.Join(in.Dir, m.NetlistDir(in.Setup.Family.Name), sweep.ResultName(m.Naming, p))
	if f, ok := in.Results.Lookup(p.Key(), m.ID); ok && f != sweep.NoFile {
		return f, nil
	}
	return "", &fs.PathError{Op: "open", Path: expected, Err: fs.ErrNotExist}
}

// Params configures one configuration's comparison.
type Params struct {
	Metric device.Metric
	Levels int
	Point  sweep.Point
	Floor  float64
}

// Configuration joins one simulated table with its measured block and
// returns the breakdown frame and the summary row. sim must carry the sweep
// column and the metric's simulated level columns; measured carries the
// renamed measured level columns, aligned to sim by row label.
func Configuration(sim, measured *table.Frame, p Params) (*table.Frame, SummaryRow) {
	m := p.Metric
	n := p.Levels

	simCols := make([]string, 0, n+1)
	simCols = append(simCols, device.SweepHeader)
	measCols := make([]string, n)
	for k := 0; k < n; k++ {
		simCols = append(simCols, m.SimColumn(k))
		measCols[k] = m.MeasuredColumn(k)
	}

	simData := columns(sim, simCols)
	measData := columns(measured, measCols)
	simSweep := simData[0]

	// Each measured row takes the simulated sweep value at the same label.
	measSweep := make([]float64, measured.Len())
	for r, label := range measured.Index {
		if label >= 0 && label < len(simSweep) {
			measSweep[r] = simSweep[label]
		} else {
			measSweep[r] = math.NaN()
		}
	}

	// Left join on the sweep value, simulated rows first.
	type pair struct{ s, m int }
	var joined []pair
	for s, v := range simSweep {
		matched := false
		for r, mv := range measSweep {
			if mv == v {
				joined = append(joined, pair{s, r})
				matched = true
			}
		}
		if !matched {
			joined = append(joined, pair{s, -1})
		}
	}

	out := table.New(table.Range(len(joined)))
	for c, name := range simCols {
		vals := make([]float64, len(joined))
		for i, j := range joined {
			vals[i] = simData[c][j.s]
		}
		out.AddColumn(name, vals)
	}
	for c, name := range measCols {
		vals := make([]float64, len(joined))
		for i, j := range joined {
			if j.m < 0 {
				vals[i] = math.NaN()
			} else {
				vals[i] = measData[c][j.m]
			}
		}
		out.AddColumn(name, vals)
	}

	if m.Floor {
		for k := 0; k < n; k++ {
			clip(out, simCols[k+1], p.Floor)
			clip(out, measCols[k], p.Floor)
		}
	}

	steps := make([][]float64, n)
	for k := 0; k < n; k++ {
		s, _ := out.Col(simCols[k+1])
		mv, _ := out.Col(measCols[k])
		steps[k] = make([]float64, out.Len())
		for i := range steps[k] {
			steps[k][i] = math.Abs(mv[i]-s[i]) * 100 / mv[i]
		}
		out.AddColumn(m.StepColumn(k), steps[k])
	}

	if m.Tags {
		out.Const(ColLength, p.Point.Length)
		out.Const(ColWidth, p.Point.Width)
		out.Const(ColTemp, float64(p.Point.Temp))
	}

	if m.NaN == device.FillBeforeError {
		out.FillNaN(0)
	}

	errs := make([]float64, out.Len())
	for i := range errs {
		sum := 0.0
		for k := 0; k < n; k++ {
			sum += steps[k][i]
		}
		errs[i] = math.Abs(sum) / float64(n)
	}
	out.AddColumn(ColError, errs)

	if m.NaN == device.FillBeforeRMS {
		out.FillNaN(0)
	}

	rms := RMS(errs)
	out.Const(ColRMSError, rms)
	out.FillNaN(0)

	return out, SummaryRow{Temp: p.Point.Temp, Width: p.Point.Width, Length: p.Point.Length, RMSError: rms}
}

// RMS is sqrt(mean(x^2)) over the non-NaN values of x, or NaN when there are none.
func RMS(x []float64) float64 {
	sq := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			sq = append(sq, v*v)
		}
	}
	if len(sq) == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

// clip raises values below floor to floor. NaN stays NaN.
func clip(f *table.Frame, name string, floor float64) {
	col, _ := f.Col(name)
	for i, v := range col {
		if v < floor {
			col[i] = floor
		}
	}
}

// columns returns the named columns of f, NaN-filled where f lacks one.
func columns(f *table.Frame, names []string) [][]float64 {
	out := make([][]float64, len(names))
	for i, name := range names {
		if col, ok := f.Col(name); ok {
			out[i] = col
			continue
		}
		if f.Len() > 0 {
			logging.Get(logging.CategoryCompare).Warn("column %s missing, treated as empty", name)
		}
		out[i] = table.NaNs(f.Len())
	}
	return out
}
