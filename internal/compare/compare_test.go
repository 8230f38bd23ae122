package compare

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosregress/internal/device"
	"mosregress/internal/sweep"
	"mosregress/internal/table"
)

var nan = math.NaN()

func metric(t *testing.T, id device.SuiteID, name string) device.Metric {
	t.Helper()
	s, err := device.SuiteByID(id)
	require.NoError(t, err)
	m, ok := s.Metric(name)
	require.True(t, ok)
	return m
}

// frame builds a frame with labels 0..n-1 from name/values pairs.
func frame(cols ...interface{}) *table.Frame {
	n := len(cols[1].([]float64))
	f := table.New(table.Range(n))
	for i := 0; i < len(cols); i += 2 {
		f.AddColumn(cols[i].(string), cols[i+1].([]float64))
	}
	return f
}

func col(t *testing.T, f *table.Frame, name string) []float64 {
	t.Helper()
	c, ok := f.Col(name)
	require.True(t, ok, "column %s", name)
	return c
}

func TestIdenticalCurvesHaveZeroError(t *testing.T) {
	m := metric(t, device.SuiteIVVbs, "Id")
	sim := frame("v-sweep", []float64{0, 0.05, 0.1}, "vb1", []float64{1e-9, 2e-9, 3e-9}, "vb2", []float64{1e-6, 2e-6, 3e-6})
	meas := frame("measured_vbs1", []float64{1e-9, 2e-9, 3e-9}, "measured_vbs2", []float64{1e-6, 2e-6, 3e-6})

	out, row := Configuration(sim, meas, Params{Metric: m, Levels: 2, Point: sweep.Point{Width: 10, Length: 0.28, Temp: 25}, Floor: DefaultCurrentFloor})
	assert.Equal(t, 0.0, row.RMSError)
	assert.Equal(t, []float64{0, 0, 0}, col(t, out, ColError))
	assert.Equal(t, []string{"v-sweep", "vb1", "vb2", "measured_vbs1", "measured_vbs2",
		"vgs_step1_error", "vgs_step2_error", "error", "rms_error"}, out.Columns)
}

func TestCurrentFloorClipsBothSides(t *testing.T) {
	m := metric(t, device.SuiteIVVbs, "Id")
	sim := frame("v-sweep", []float64{0}, "vb1", []float64{1e-11})
	meas := frame("measured_vbs1", []float64{1e-15})

	out, row := Configuration(sim, meas, Params{Metric: m, Levels: 1, Floor: 5e-12})
	want := math.Abs(5e-12-1e-11) * 100 / 5e-12
	assert.InDelta(t, want, col(t, out, "vgs_step1_error")[0], 1e-9)
	assert.InDelta(t, want, row.RMSError, 1e-9)

	// Simulated values below the floor are raised too.
	sim = frame("v-sweep", []float64{0}, "vb1", []float64{-3e-13})
	meas = frame("measured_vbs1", []float64{1e-14})
	_, row = Configuration(sim, meas, Params{Metric: m, Levels: 1, Floor: 5e-12})
	assert.Equal(t, 0.0, row.RMSError)
}

func TestRdsIsNotClipped(t *testing.T) {
	m := metric(t, device.SuiteIVVgs, "Rds")
	sim := frame("v-sweep", []float64{0}, "vb1", []float64{2e-13})
	meas := frame("measured_vgs1", []float64{1e-13})

	_, row := Configuration(sim, meas, Params{Metric: m, Levels: 1, Floor: 5e-12})
	assert.InDelta(t, 100.0, row.RMSError, 1e-9)
}

func TestLeftJoinOnSweep(t *testing.T) {
	m := metric(t, device.SuiteCV, "Cgc")
	// The measured block is one row shorter than the simulation.
	sim := frame("v-sweep", []float64{-1, 0, 1}, "vb1", []float64{1, 2, 4})
	meas := frame("measured_v1", []float64{1, 1})

	out, _ := Configuration(sim, meas, Params{Metric: m, Levels: 1})
	assert.Equal(t, 3, out.Len())
	// Unmatched rows carry NaN, written as 0.
	assert.Equal(t, []float64{1, 1, 0}, col(t, out, "measured_v1"))

	// Duplicate simulated sweep values match the same measured row twice.
	sim = frame("v-sweep", []float64{0, 0}, "vb1", []float64{1, 3})
	meas = frame("measured_v1", []float64{2, 2})
	out, _ = Configuration(sim, meas, Params{Metric: m, Levels: 1})
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, []float64{1, 1, 3, 3}, col(t, out, "vb1"))
}

func TestNaNPolicies(t *testing.T) {
	// Two rows, two levels; level 2 of row 1 is missing in the measurement.
	sim := func(prefix string) *table.Frame {
		return frame("v-sweep", []float64{0, 1}, prefix+"1", []float64{2, 2}, prefix+"2", []float64{2, 2})
	}
	meas := func(prefix string) *table.Frame {
		return frame(prefix+"1", []float64{1, 1}, prefix+"2", []float64{1, nan})
	}

	t.Run("fill before error", func(t *testing.T) {
		m := metric(t, device.SuiteIVVgs, "Rds")
		out, row := Configuration(sim("vb"), meas("measured_vgs"), Params{Metric: m, Levels: 2})
		// Row 1: steps 100 and NaN->0, error 50.
		assert.Equal(t, []float64{100, 50}, col(t, out, ColError))
		assert.InDelta(t, math.Sqrt((100*100+50*50)/2.0), row.RMSError, 1e-9)
		assert.True(t, out.Has(ColTemp))
	})

	t.Run("fill before rms", func(t *testing.T) {
		m := metric(t, device.SuiteCV, "Cgd")
		out, row := Configuration(sim("vgs"), meas("measured_v"), Params{Metric: m, Levels: 2})
		// Row 1: error NaN->0 before RMS.
		assert.Equal(t, []float64{100, 0}, col(t, out, ColError))
		assert.InDelta(t, math.Sqrt(100*100/2.0), row.RMSError, 1e-9)
	})

	t.Run("fill after rms", func(t *testing.T) {
		m := metric(t, device.SuiteIVVbs, "Id")
		out, row := Configuration(sim("vb"), meas("measured_vbs"), Params{Metric: m, Levels: 2, Floor: 1e-12})
		// RMS skips the NaN row; the breakdown shows 0.
		assert.InDelta(t, 100.0, row.RMSError, 1e-9)
		assert.Equal(t, []float64{100, 0}, col(t, out, ColError))
	})
}

func TestEmptyMeasurementGivesNaNRMS(t *testing.T) {
	m := metric(t, device.SuiteIVVbs, "Id")
	sim := frame("v-sweep", []float64{0}, "vb1", []float64{1e-9})
	meas := table.New(nil)
	meas.AddColumn("measured_vbs1", nil)

	_, row := Configuration(sim, meas, Params{Metric: m, Levels: 1, Floor: DefaultCurrentFloor})
	assert.True(t, math.IsNaN(row.RMSError))
}

func TestRMS(t *testing.T) {
	assert.InDelta(t, math.Sqrt(12.5), RMS([]float64{3, 4, nan}), 1e-12)
	assert.True(t, math.IsNaN(RMS([]float64{nan})))
	assert.True(t, math.IsNaN(RMS(nil)))
}

type countingSink struct {
	writes []int
}

func (c *countingSink) Write(_ device.Metric, _ *table.Frame, summary []SummaryRow) error {
	c.writes = append(c.writes, len(summary))
	return nil
}

func TestAccumulatorCheckpoints(t *testing.T) {
	m := metric(t, device.SuiteCV, "Cgs")
	sink := &countingSink{}
	acc := NewAccumulator(m, 2, sink)
	f := frame("x", []float64{1})
	for i := 0; i < 5; i++ {
		require.NoError(t, acc.Add(f, SummaryRow{Temp: 25}))
	}
	require.NoError(t, acc.Flush())
	require.NoError(t, acc.Flush())
	assert.Equal(t, []int{2, 4, 5}, sink.writes)
	assert.Equal(t, 5, acc.Rows())
	assert.Equal(t, 5, acc.Breakdown().Len())
}

func TestAccumulatorWritesEmptyOnce(t *testing.T) {
	sink := &countingSink{}
	acc := NewAccumulator(metric(t, device.SuiteCV, "Cgs"), 0, sink)
	require.NoError(t, acc.Flush())
	assert.Equal(t, []int{0}, sink.writes)
}

func TestSummaryCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_error_analysis_Id.csv")
	rows := []SummaryRow{{Temp: -40, Width: 10, Length: 0.28, RMSError: 1.5}, {Temp: 125, Width: 1, Length: 1, RMSError: nan}}
	require.NoError(t, WriteSummaryCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "temp,W (um),L (um),rms_error\n-40,10.0,0.28,1.5\n125,1.0,1.0,\n", string(data))

	got, err := ReadSummaryCSV(path)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

type failingWriter struct{ calls int }

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errDiskFull
}

func TestSummaryWriteStopsAtFirstRowError(t *testing.T) {
	// Enough rows to overflow the csv writer's buffer before Flush.
	rows := make([]SummaryRow, 2000)
	for i := range rows {
		rows[i] = SummaryRow{Temp: 25, Width: 10, Length: 0.28, RMSError: 1.5}
	}
	w := &failingWriter{}
	err := writeSummary(w, rows)
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, w.calls)
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nfet_03v3", ResultsDBName)
	s, err := OpenSQLiteSink(path, "nfet_03v3", "run-1")
	require.NoError(t, err)
	defer s.Close()

	m := metric(t, device.SuiteIVVgs, "Id")
	rows := []SummaryRow{{Temp: 25, Width: 10, Length: 10, RMSError: 3}}
	require.NoError(t, s.Write(m, nil, rows))
	rows = append(rows, SummaryRow{Temp: -40, Width: 1, Length: 1, RMSError: nan})
	require.NoError(t, s.Write(m, nil, rows))

	got, err := s.Summary("Id")
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("stored rows mismatch (-want +got):\n%s", diff)
	}
}

func writeResult(t *testing.T, path string, f *table.Frame) {
	t.Helper()
	require.NoError(t, f.SaveCSV(path))
}

func TestCompareWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	setup, err := device.Resolve(device.SuiteCV, "nfet_06v0")
	require.NoError(t, err)
	m, _ := setup.Suite.Metric("Cgc")

	p := sweep.Point{Width: 10, Length: 10, Temp: 25, Fingers: 20}
	result := filepath.Join(dir, m.NetlistDir("nfet_06v0"), sweep.ResultName(m.Naming, p))
	writeResult(t, result, frame("v-sweep", []float64{0, 1},
		"vb1", []float64{1, 1}, "vb2", []float64{1, 1}, "vb3", []float64{1, 1}, "vb4", []float64{1, 1}))

	measured := frame(
		"measured_vbs0=0", []float64{1, 1},
		"measured_vbs0=-1", []float64{1, 1},
		"measured_vbs0=-2", []float64{1, 1},
		"measured_vbs0=-3", []float64{2, 2},
	)

	var observed []sweep.Point
	calc := &Calculator{
		Sinks: []Sink{CSVSink{Dir: dir}},
		Observe: func(_ device.Metric, p sweep.Point, f *table.Frame) error {
			observed = append(observed, p)
			return errors.New("plotting is best effort")
		},
	}
	out, err := calc.Compare(context.Background(), Input{
		Setup:    setup,
		Metric:   m,
		Measured: measured,
		Points:   []sweep.Point{p},
		Results:  sweep.Results{{Point: p, Files: map[string]string{"Cgc": result}}},
		Dir:      dir,
	})
	require.NoError(t, err)
	require.Len(t, out.Summary, 1)
	// Level 4 is off by 50% on both rows: error 12.5.
	assert.InDelta(t, 12.5, out.Summary[0].RMSError, 1e-9)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, []sweep.Point{p}, observed)

	_, err = os.Stat(filepath.Join(dir, "error_analysis_Cgc.csv"))
	assert.NoError(t, err)
	rows, err := ReadSummaryCSV(filepath.Join(dir, "final_error_analysis_Cgc.csv"))
	require.NoError(t, err)
	assert.Equal(t, 25, rows[0].Temp)
}

func TestCompareMissingResultFile(t *testing.T) {
	setup, err := device.Resolve(device.SuiteIVVgs, "nfet_03v3")
	require.NoError(t, err)
	m, _ := setup.Suite.Metric("Id")
	p := sweep.Point{Width: 10, Length: 10, Temp: 25}

	calc := &Calculator{}
	_, err = calc.Compare(context.Background(), Input{
		Setup:   setup,
		Metric:  m,
		Points:  []sweep.Point{p},
		Results: sweep.Results{{Point: p, Files: map[string]string{"Id": sweep.NoFile}}},
		Dir:     t.TempDir(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "T25_simulated_W10.0_L10.0.csv")
}
