package regression

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mosregress/internal/compare"
	"mosregress/internal/config"
	"mosregress/internal/deck"
	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/report"
	"mosregress/internal/reshape"
	"mosregress/internal/sheet"
	"mosregress/internal/simulator"
	"mosregress/internal/sweep"
	"mosregress/internal/table"
)

// ErrRegressionFailed is returned when a metric exceeds the pass threshold.
var ErrRegressionFailed = errors.New("regression failed")

// State is a step of the per-device state machine.
type State int

const (
	StateInit State = iota
	StatePerDevice
	StateSimulate
	StateReshape
	StateCompare
	StateReport
	StatePass
	StateFail
)

var stateNames = [...]string{"Init", "PerDevice", "Simulate", "Reshape", "Compare", "Report", "Pass", "Fail"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DeviceSummary is the outcome of one device within a suite.
type DeviceSummary struct {
	Suite    device.SuiteID
	Device   string
	DataFile string // empty when no workbook was found
	Points   int
	Skipped  bool
	Metrics  []report.MetricResult
	Final    State
}

// Summary is the outcome of a run.
type Summary struct {
	RunID   string
	Devices []DeviceSummary
}

// Passed reports whether every device passed.
func (s *Summary) Passed() bool {
	for _, d := range s.Devices {
		if d.Final != StatePass {
			return false
		}
	}
	return true
}

// Results flattens the metric results of every device.
func (s *Summary) Results() []report.MetricResult {
	var out []report.MetricResult
	for _, d := range s.Devices {
		out = append(out, d.Metrics...)
	}
	return out
}

// Driver runs a plan.
type Driver struct {
	Config   *config.Config
	Plan     *Plan
	Invoker  simulator.Invoker
	Renderer sweep.Renderer
	// CheckVersion probes the simulator before anything else runs.
	CheckVersion func(ctx context.Context) (int, error)
	Extractor    *sheet.Extractor
	Out          io.Writer // receives the summary table; nil disables it
	RunID        string
}

// New wires a driver to ngspice and the embedded decks.
func New(cfg *config.Config, plan *Plan) *Driver {
	if plan == nil {
		plan = DefaultPlan()
	}
	return &Driver{
		Config:   cfg,
		Plan:     plan,
		Invoker:  simulator.NewNGSpice(cfg.Simulator.Binary, cfg.GetSimulatorTimeout()),
		Renderer: deck.NewRenderer(cfg.Simulator.TemplateDir),
		CheckVersion: func(ctx context.Context) (int, error) {
			return simulator.CheckVersion(ctx, cfg.Simulator.Binary, cfg.Simulator.MinVersion)
		},
		Extractor: sheet.NewExtractor(),
		RunID:     uuid.NewString(),
	}
}

// Run processes every enabled suite and device in plan order. It stops after
// the first device with a failing metric, returning an error wrapping
// ErrRegressionFailed. The
// returned summary covers every device processed so far, including the one
// that failed.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	if d.RunID == "" {
		d.RunID = uuid.NewString()
	}
	if d.Extractor == nil {
		d.Extractor = sheet.NewExtractor()
	}
	sum := &Summary{RunID: d.RunID}

	logging.DriverDebug("-> %s (run %s)", StateInit, d.RunID)
	if d.CheckVersion != nil {
		v, err := d.CheckVersion(ctx)
		if err != nil {
			var verr *simulator.VersionError
			switch {
			case errors.Is(err, simulator.ErrNotFound):
				logging.BootError("ngspice is not found. Please make sure ngspice is installed.")
			case errors.As(err, &verr):
				logging.BootError("ngspice version is not supported. Please use ngspice version %d or newer.", verr.Min)
			default:
				logging.BootError("simulator check failed: %v", err)
			}
			return sum, err
		}
		logging.Boot("ngspice version %d", v)
	}

	defer d.render(sum)

	for _, sp := range d.Plan.Suites {
		if !d.Config.SuiteEnabled(string(sp.ID)) {
			continue
		}
		suite, err := device.SuiteByID(sp.ID)
		if err != nil {
			return sum, err
		}
		root := sp.Root
		if root == "" {
			root = suite.Root
		}
		for _, dp := range sp.Devices {
			if !d.Config.DeviceEnabled(dp.Name) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			ds, err := d.runDevice(ctx, suite, filepath.Join(d.Config.Paths.WorkDir, root), dp)
			if err != nil && ds.Final != StateFail {
				d.enter(ds, StateFail)
			}
			sum.Devices = append(sum.Devices, *ds)
			if err != nil {
				if errors.Is(err, ErrRegressionFailed) {
					logging.ReportError("#Failed regression for %s analysis.", suite.Description)
				}
				return sum, err
			}
		}
	}
	return sum, nil
}

func (d *Driver) render(sum *Summary) {
	if d.Out == nil {
		return
	}
	if err := report.Render(d.Out, "mosregress "+sum.RunID, sum.Results()); err != nil {
		logging.DriverWarn("failed to render summary: %v", err)
	}
}

func (d *Driver) enter(ds *DeviceSummary, s State) {
	logging.DriverDebug("%s %s -> %s", ds.Suite, ds.Device, s)
	ds.Final = s
}

func (d *Driver) dataPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(d.Config.Paths.DataDir, rel)
}

func (d *Driver) runDevice(ctx context.Context, suite device.Suite, root string, dp DevicePlan) (*DeviceSummary, error) {
	ds := &DeviceSummary{Suite: suite.ID, Device: dp.Name}
	d.enter(ds, StatePerDevice)

	setup, err := device.Resolve(suite.ID, dp.Name)
	if err != nil {
		return ds, err
	}
	dir := filepath.Join(root, dp.Name)
	if err := os.RemoveAll(dir); err != nil {
		return ds, fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ds, err
	}

	logging.Driver("%s", strings.Repeat("######", 10))
	logging.Driver("# Checking Device %s", dp.Name)

	file, err := filepath.Abs(d.dataPath(dp.Data))
	if err != nil {
		return ds, err
	}
	if _, err := os.Stat(file); err != nil {
		logging.DriverWarn("# Can't find file for device: %s", dp.Name)
		file = ""
	}
	logging.Driver("#  data points file : %s", file)
	if file == "" {
		logging.DriverWarn("%s %s: no measured data, skipped", suite.ID, dp.Name)
		ds.Skipped = true
		d.enter(ds, StatePass)
		return ds, nil
	}
	ds.DataFile = file

	sh, err := sheet.Load(file)
	if err != nil {
		return ds, err
	}
	if err := sh.WriteCSV(filepath.Join(dir, dp.Name+".csv")); err != nil {
		return ds, err
	}
	geom, err := sh.Geometry(suite.HalfGeometry)
	if err != nil {
		return ds, err
	}
	measured, err := d.Extractor.Extract(sh, setup)
	if err != nil {
		return ds, err
	}
	points := sweep.Points(geom, suite)
	ds.Points = len(points)
	logging.Extract("%s: %d configurations, %d measured rows", dp.Name, len(points), measured.Rows())

	d.enter(ds, StateSimulate)
	runner := &sweep.Runner{Renderer: d.Renderer, Invoker: d.Invoker, Workers: d.Config.GetWorkers()}
	results, err := runner.Run(ctx, sweep.Job{
		Setup:    setup,
		Points:   points,
		Dir:      dir,
		Metrics:  suite.Metrics,
		ModelLib: d.Config.Simulator.ModelLibrary,
		Corner:   d.Config.Simulator.Corner,
	})
	if err != nil {
		return ds, err
	}

	d.enter(ds, StateReshape)
	for _, m := range suite.Metrics {
		spec := reshape.SpecFor(setup, m)
		for _, pr := range results {
			f := pr.Files[m.ID]
			if f == "" || f == sweep.NoFile {
				continue
			}
			if err := reshape.File(f, spec); err != nil {
				return ds, fmt.Errorf("%s %s: %w", dp.Name, m.ID, err)
			}
		}
		rows := 0
		if t := measured[m.Table]; t != nil {
			rows = t.Len()
		}
		subject := dp.Name
		if len(suite.Metrics) > 1 {
			subject += " " + m.Name()
		}
		logging.Driver("# Device %s number of measured_datapoints : %d", subject, len(points)*rows)
		logging.Driver("# Device %s number of simulated datapoints : %d", subject, results.Produced(m.ID)*rows)
	}

	d.enter(ds, StateCompare)
	sinks := []compare.Sink{compare.CSVSink{Dir: dir}}
	if d.Config.Output.ResultsDB {
		db, err := compare.OpenSQLiteSink(filepath.Join(dir, compare.ResultsDBName), dp.Name, d.RunID)
		if err != nil {
			return ds, err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}
	calc := &compare.Calculator{
		Floor:           d.Config.Regression.CurrentFloor,
		CheckpointEvery: d.Config.Regression.CheckpointEvery,
		Sinks:           sinks,
	}
	if d.Config.Output.Plots {
		calc.Observe = func(m device.Metric, p sweep.Point, f *table.Frame) error {
			title := fmt.Sprintf("%s %s %s", dp.Name, m.Name(), p)
			return report.PlotConfiguration(report.PlotPath(dir, m, p), title, f, m, setup.LevelsFor(m))
		}
	}

	// Every metric is compared and reported before the device's verdict.
	var failed error
	for _, m := range suite.Metrics {
		out, err := calc.Compare(ctx, compare.Input{
			Setup:    setup,
			Metric:   m,
			Measured: measured[m.Table],
			Points:   points,
			Results:  results,
			Dir:      dir,
		})
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logging.DriverError("# Device %s %s: simulation result missing: %v", dp.Name, m.Name(), err)
			}
			d.enter(ds, StateFail)
			return ds, err
		}

		d.enter(ds, StateReport)
		name := ""
		if len(suite.Metrics) > 1 {
			name = m.Name()
		}
		stats := report.Summarize(out.Summary)
		verdict := report.Decide(stats, d.Config.Regression.PassThreshold, d.Config.Regression.ClampBeforeThreshold)
		ds.Metrics = append(ds.Metrics, report.MetricResult{Device: dp.Name, Metric: m.Name(), Stats: stats, Verdict: verdict})

		logging.Report("%s", report.Line(dp.Name, name, stats))
		if !verdict.Passed {
			logging.ReportError("%s", report.VerdictLine(dp.Name, name, verdict))
			if failed == nil {
				failed = fmt.Errorf("%w: %s %s max error %s exceeds %s", ErrRegressionFailed,
					dp.Name, m.Name(), table.FormatFloat(verdict.Max), table.FormatFloat(verdict.Threshold))
			}
			continue
		}
		logging.Report("%s", report.VerdictLine(dp.Name, name, verdict))
	}
	if failed != nil {
		d.enter(ds, StateFail)
		return ds, failed
	}

	d.enter(ds, StatePass)
	return ds, nil
}
