package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"mosregress/internal/device"
	"mosregress/internal/sweep"
	"mosregress/internal/table"
)

// PlotDir is the plot directory inside a device directory.
const PlotDir = "plots"

// PlotPath is where the plot of one configuration is saved.
func PlotPath(deviceDir string, m device.Metric, p sweep.Point) string {
	name := fmt.Sprintf("%s_T%d_W%s_L%s.png", m.ID, p.Temp, table.FormatFloat(p.Width), table.FormatFloat(p.Length))
	return filepath.Join(deviceDir, PlotDir, name)
}

// PlotConfiguration draws the simulated curve of every level as a line and
// the measured values as points, against the sweep column of a
// configuration's breakdown frame.
func PlotConfiguration(path, title string, breakdown *table.Frame, m device.Metric, levels []device.Level) error {
	x, ok := breakdown.Col(device.SweepHeader)
	if !ok {
		return fmt.Errorf("plot %s: no %s column", title, device.SweepHeader)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = device.SweepHeader
	p.Y.Label.Text = m.Name()
	p.Legend.Top = true

	drawn := 0
	for k, lv := range levels {
		color := plotutil.Color(k)
		if sim := points(x, breakdown, m.SimColumn(k)); len(sim) > 0 {
			line, err := plotter.NewLine(sim)
			if err != nil {
				return fmt.Errorf("plot %s: %w", title, err)
			}
			line.Color = color
			p.Add(line)
			p.Legend.Add("sim "+lv.Label, line)
			drawn++
		}
		if meas := points(x, breakdown, m.MeasuredColumn(k)); len(meas) > 0 {
			sc, err := plotter.NewScatter(meas)
			if err != nil {
				return fmt.Errorf("plot %s: %w", title, err)
			}
			sc.Color = color
			sc.Shape = plotutil.Shape(0)
			p.Add(sc)
			drawn++
		}
	}
	if drawn == 0 {
		return fmt.Errorf("plot %s: nothing to draw", title)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// points pairs x with the named column, dropping NaN and Inf.
func points(x []float64, f *table.Frame, name string) plotter.XYs {
	y, ok := f.Col(name)
	if !ok {
		return nil
	}
	xy := make(plotter.XYs, 0, len(y))
	for i, v := range y {
		if bad(v) || bad(x[i]) {
			continue
		}
		xy = append(xy, plotter.XY{X: x[i], Y: v})
	}
	return xy
}

func bad(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
