// Package reshape turns long simulator output (sweep, bias, value rows) into
// the wide form the error calculator reads: one row per sweep value and one
// column per bias level.
package reshape

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/table"
)

// ErrDuplicateEntry means two rows share the same sweep and bias values.
var ErrDuplicateEntry = errors.New("duplicate sweep/bias entry")

// ErrNonFinite means a sweep or bias value is NaN or infinite.
var ErrNonFinite = errors.New("non-finite value")

// ParseError reports a malformed data row.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Spec describes one metric's reshape.
type Spec struct {
	Pivot      string // bias column
	Value      string // value column
	Prefix     string // canonical column prefix, vb or vgs
	Levels     []device.Level
	Reciprocal bool
	Reverse    bool
}

// SpecFor builds the reshape spec of metric m for a resolved family.
func SpecFor(setup *device.Setup, m device.Metric) Spec {
	return Spec{
		Pivot:      m.Pivot,
		Value:      m.Value.For(setup.Family),
		Prefix:     m.SimPrefix,
		Levels:     setup.LevelsFor(m),
		Reciprocal: m.Reciprocate(setup.Family),
		Reverse:    setup.Family.IsPType(),
	}
}

type record struct{ sweep, bias, value float64 }

// Table reads whitespace-delimited simulator output and returns the wide
// frame. The first column of the result is the sweep.
func Table(r io.Reader, spec Spec) (*table.Frame, error) {
	recs, err := read(r, spec)
	if err != nil {
		return nil, err
	}

	if spec.Reciprocal {
		for i := range recs {
			recs[i].value = 1 / recs[i].value
		}
	}

	sweeps, biases := uniqueSorted(recs)
	sweepPos := positions(sweeps)
	biasPos := positions(biases)

	cells := make([][]float64, len(biases))
	seen := make([][]bool, len(biases))
	for c := range cells {
		cells[c] = table.NaNs(len(sweeps))
		seen[c] = make([]bool, len(sweeps))
	}
	for _, rec := range recs {
		row, col := sweepPos[rec.sweep], biasPos[rec.bias]
		if seen[col][row] {
			return nil, fmt.Errorf("%w: %s=%s %s=%s", ErrDuplicateEntry,
				device.SweepHeader, table.FormatFloat(rec.sweep), spec.Pivot, table.FormatFloat(rec.bias))
		}
		seen[col][row] = true
		cells[col][row] = rec.value
	}

	out := table.New(table.Range(len(sweeps)))
	out.AddColumn(device.SweepHeader, sweeps)
	for c, b := range biases {
		name := table.FormatFloat(b)
		if k := device.IndexOf(spec.Levels, b); k >= 0 {
			name = spec.Prefix + strconv.Itoa(k+1)
		} else {
			logging.ReshapeWarn("%s=%s matches no level", spec.Pivot, name)
		}
		out.AddColumn(name, cells[c])
	}

	if spec.Reverse {
		out = out.Reverse()
		out.ResetIndex()
	}
	return out, nil
}

func read(r io.Reader, spec Spec) ([]record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		header   []string
		iSweep   = -1
		iPivot   = -1
		iValue   = -1
		recs     []record
		lineNo   int
		repeated int
	)
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if header == nil {
			header = fields
			for i, h := range header {
				switch h {
				case device.SweepHeader:
					iSweep = i
				case spec.Pivot:
					iPivot = i
				case spec.Value:
					iValue = i
				}
			}
			var missing []string
			for name, idx := range map[string]int{device.SweepHeader: iSweep, spec.Pivot: iPivot, spec.Value: iValue} {
				if idx < 0 {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				return nil, &table.MissingColumnError{Columns: missing}
			}
			continue
		}
		if len(fields) != len(header) {
			return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("%d fields, header has %d", len(fields), len(header))}
		}
		if fields[iSweep] == device.SweepHeader {
			repeated++
			continue
		}
		var rec record
		for _, c := range []struct {
			idx int
			dst *float64
		}{{iSweep, &rec.sweep}, {iPivot, &rec.bias}, {iValue, &rec.value}} {
			v, err := strconv.ParseFloat(fields[c.idx], 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Column: header[c.idx], Value: fields[c.idx], Err: err}
			}
			*c.dst = v
		}
		// Sweep and bias are pivot keys.
		for _, c := range []struct {
			idx int
			v   float64
		}{{iSweep, rec.sweep}, {iPivot, rec.bias}} {
			if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
				return nil, &ParseError{Line: lineNo, Column: header[c.idx], Value: fields[c.idx], Err: ErrNonFinite}
			}
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, &ParseError{Line: 0, Err: errors.New("no header row")}
	}
	if repeated > 0 {
		logging.ReshapeDebug("dropped %d repeated header rows", repeated)
	}
	return recs, nil
}

func uniqueSorted(recs []record) (sweeps, biases []float64) {
	s := make(map[float64]struct{})
	b := make(map[float64]struct{})
	for _, r := range recs {
		s[r.sweep] = struct{}{}
		b[r.bias] = struct{}{}
	}
	for v := range s {
		sweeps = append(sweeps, v)
	}
	for v := range b {
		biases = append(biases, v)
	}
	sort.Float64s(sweeps)
	sort.Float64s(biases)
	return sweeps, biases
}

func positions(vals []float64) map[float64]int {
	m := make(map[float64]int, len(vals))
	for i, v := range vals {
		m[v] = i
	}
	return m
}

// File reshapes a result file in place.
func File(path string, spec Spec) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	wide, err := Table(f, spec)
	f.Close()
	if err != nil {
		return fmt.Errorf("reshape %s: %w", path, err)
	}
	if err := wide.SaveCSV(path); err != nil {
		return fmt.Errorf("reshape %s: %w", path, err)
	}
	logging.ReshapeDebug("%s: %d rows, %d columns", path, wide.Len(), wide.Width())
	return nil
}
