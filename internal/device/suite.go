package device

import (
	"fmt"
	"strconv"
)

// SuiteID names one regression suite.
type SuiteID string

const (
	SuiteIVVbs SuiteID = "iv_vbs"
	SuiteIVVgs SuiteID = "iv_vgs"
	SuiteCV    SuiteID = "cv"
)

// SweepHeader is the sweep column header in simulator output.
const SweepHeader = "v-sweep"

// NaNPolicy says when missing values in a comparison are replaced by zero.
type NaNPolicy int

const (
	// FillAfterRMS computes RMS from the unfilled errors and zeroes NaN only
	// in the written breakdown.
	FillAfterRMS NaNPolicy = iota
	// FillBeforeError zeroes NaN after the per-level errors and before their mean.
	FillBeforeError
	// FillBeforeRMS zeroes NaN after the mean error and before RMS.
	FillBeforeRMS
)

func (p NaNPolicy) String() string {
	switch p {
	case FillBeforeError:
		return "fill-before-error"
	case FillBeforeRMS:
		return "fill-before-rms"
	default:
		return "fill-after-rms"
	}
}

// Naming selects the netlist and result file name convention.
type Naming int

const (
	// NamingTempLW: netlist_w<W>_l<L>_t<T>.spice, T<T>_simulated_L<L>_W<W>.csv
	NamingTempLW Naming = iota
	// NamingTempWL: netlist_w<W>_l<L>_t<T>.spice, T<T>_simulated_W<W>_L<L>.csv
	NamingTempWL
	// NamingWL: netlist_w<W>_l<L>.spice, simulated_W<W>_L<L>.csv
	NamingWL
)

// Metric is one simulated quantity compared against one measured table.
type Metric struct {
	ID    string // Id, Rds, Cgc, Cgd, Cgs
	Label string // shown in report lines, empty when a suite has one metric

	Dir         string // netlist directory suffix after "<device>_netlists"
	Naming      Naming
	Template    string // deck template name
	StressModel bool   // dss families simulate with the *_dss model

	LevelSet string // key into Setup.Levels
	Table    string // key into the extracted measured tables
	BlockMul int    // measured block for configuration i is BlockMul*i + BlockAdd
	BlockAdd int

	Pivot     string // bias column of the raw simulator output
	Value     Signed // value column of the raw simulator output
	SimPrefix string // vb, vgs

	MeasuredPrefix string // measured_vbs, measured_vgs, measured_v
	StepFormat     string // per-level error column, e.g. "vgs_step%d_error"

	Floor      bool // clip currents to the configured floor
	Reciprocal func(Family) bool
	NaN        NaNPolicy
	Suffix     string // error_analysis<Suffix>.csv
	Tags       bool   // breakdown rows carry length, width, temp
}

// Block returns the measured block index compared with configuration i.
func (m Metric) Block(i int) int { return m.BlockMul*i + m.BlockAdd }

// SimColumn is the canonical simulated column for level k (zero based).
func (m Metric) SimColumn(k int) string { return m.SimPrefix + strconv.Itoa(k+1) }

// MeasuredColumn is the renamed measured column for level k (zero based).
func (m Metric) MeasuredColumn(k int) string { return m.MeasuredPrefix + strconv.Itoa(k+1) }

// StepColumn is the per-level error column for level k (zero based).
func (m Metric) StepColumn(k int) string { return fmt.Sprintf(m.StepFormat, k+1) }

// Reciprocate reports whether simulated values are inverted for f.
func (m Metric) Reciprocate(f Family) bool {
	return m.Reciprocal != nil && m.Reciprocal(f)
}

// NetlistDir is the per-metric netlist directory name for a device.
func (m Metric) NetlistDir(device string) string {
	return device + "_netlists" + m.Dir
}

// Name is how the metric appears in report lines.
func (m Metric) Name() string {
	if m.Label == "" {
		return m.ID
	}
	return m.Label
}

// BlockScheme describes how a measured table is divided into blocks.
type BlockScheme int

const (
	// BlocksPerHalfRow: blocks 0 .. 2*rows-1. Block 0 is row 0 at 25C;
	// block b >= 1 belongs to row (b-1)/2 with temperatures by thirds.
	BlocksPerHalfRow BlockScheme = iota
	// BlocksPerRow: one block per geometry row, no temperature tag.
	BlocksPerRow
)

// Affine maps a block index to a header suffix.
type Affine struct{ Mul, Add int }

// At evaluates the map.
func (a Affine) At(b int) int { return a.Mul*b + a.Add }

// TableLayout is the declarative column map of one measured table.
type TableLayout struct {
	Name        string
	Scheme      BlockScheme
	LevelSet    string
	LevelPrefix Signed // header prefix before the level label, e.g. "vbs ="
	LevelSuffix Affine // header suffix of block b's level columns

	Sweep      Signed // sweep header; suffixed by b-1 under BlocksPerHalfRow
	FirstSweep Signed // block 0 sweep header under BlocksPerHalfRow
	FirstExtra Signed // extra column selected for block 0 only
	SweepName  string // canonical sweep column name

	Kind string // measured kind, vbs or vgs
	Sep  string // text between block index and label in measured names
	Temp bool   // blocks carry a temp tag
}

// MeasuredName is the column a level of a block is renamed to.
func (t TableLayout) MeasuredName(block int, label string) string {
	return "measured_" + t.Kind + strconv.Itoa(block) + t.Sep + label
}

// Suffixed applies the workbook duplicate-header convention: suffix 0 means
// the first occurrence, which carries no suffix.
func Suffixed(name string, n int) string {
	if n == 0 {
		return name
	}
	return name + "." + strconv.Itoa(n)
}

// Suite is one regression pipeline.
type Suite struct {
	ID          SuiteID
	Root        string // regression root directory
	Description string // used in the failure line
	Devices     []string
	Metrics     []Metric
	Tables      []TableLayout

	HalfGeometry bool // use the first floor(rows/2) geometry rows
	BucketTemps  bool // 25/-40/125 by thirds; otherwise FixedTemp
	FixedTemp    int
	Fingers      bool // row 0 gets 20 fingers, others 1
	Diffusion    func(Family) float64
}

// Table returns the layout with the given name.
func (s Suite) Table(name string) (TableLayout, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableLayout{}, false
}

// Metric returns the metric with the given id.
func (s Suite) Metric(id string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.ID == id {
			return m, true
		}
	}
	return Metric{}, false
}
