package sweep

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"mosregress/internal/deck"
	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/simulator"
)

// NoFile marks a metric whose result file was absent after its run.
const NoFile = "None"

// PointResult is the outcome of one point: the result path per metric id,
// or NoFile.
type PointResult struct {
	Point Point
	Files map[string]string
}

// Results holds point results in point order.
type Results []PointResult

// Lookup returns the result path of metric at key.
func (r Results) Lookup(key Key, metric string) (string, bool) {
	for _, pr := range r {
		if pr.Point.Key() == key {
			f, ok := pr.Files[metric]
			return f, ok
		}
	}
	return "", false
}

// Produced counts result files that exist for metric.
func (r Results) Produced(metric string) int {
	n := 0
	for _, pr := range r {
		if f := pr.Files[metric]; f != "" && f != NoFile {
			n++
		}
	}
	return n
}

// Renderer writes one deck file.
type Renderer interface {
	RenderFile(path, name, model string, p deck.Params) error
}

// Job is one device's sweep.
type Job struct {
	Setup    *device.Setup
	Points   []Point
	Dir      string // <root>/<device>
	Metrics  []device.Metric
	ModelLib string
	Corner   string
}

// Runner renders and simulates every point of a job.
type Runner struct {
	Renderer Renderer
	Invoker  simulator.Invoker
	Workers  int
}

// Run simulates all points with at most Workers concurrent simulator
// processes. Per-point failures are logged and recorded as NoFile; the
// returned error is only ever the context's. Points sharing a Key are
// simulated once and share the result files.
func (r *Runner) Run(ctx context.Context, job Job) (Results, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	timer := logging.StartTimer(logging.CategorySweep, "sweep "+job.Setup.Family.Name)
	defer timer.StopWithInfo()

	for _, m := range job.Metrics {
		if err := os.MkdirAll(filepath.Join(job.Dir, m.NetlistDir(job.Setup.Family.Name)), 0755); err != nil {
			return nil, err
		}
	}

	results := make(Results, len(job.Points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	logging.Sweep("%s: %d points on %d workers", job.Setup.Family.Name, len(job.Points), workers)
	first := make(map[Key]int, len(job.Points))
	dups := make(map[int]int)
	for i, p := range job.Points {
		if gctx.Err() != nil {
			break
		}
		if j, ok := first[p.Key()]; ok {
			logging.SweepWarn("%s %s: duplicate of point %d, reusing its results", job.Setup.Family.Name, p, j)
			dups[i] = j
			continue
		}
		first[p.Key()] = i
		g.Go(func() error {
			results[i] = r.runPoint(gctx, job, p)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, j := range dups {
		results[i] = PointResult{Point: job.Points[i], Files: results[j].Files}
	}
	return results, nil
}

func (r *Runner) runPoint(ctx context.Context, job Job, p Point) PointResult {
	fam := job.Setup.Family
	pr := PointResult{Point: p, Files: make(map[string]string, len(job.Metrics))}

	for _, m := range job.Metrics {
		dir := filepath.Join(job.Dir, m.NetlistDir(fam.Name))
		netlist := filepath.Join(dir, NetlistName(m.Naming, p))
		result := filepath.Join(dir, ResultName(m.Naming, p))
		pr.Files[m.ID] = NoFile

		if ctx.Err() != nil {
			continue
		}
		_ = os.Remove(result)

		sw := job.Setup.Sweeps[m.ID]
		params := deck.Params{
			Device:   fam.Name,
			Model:    fam.Model(m.StressModel),
			PType:    fam.IsPType(),
			Width:    p.Width,
			Length:   p.Length,
			Temp:     p.Temp,
			Fingers:  p.Fingers,
			Vgs:      sw.Vgs,
			Vds:      sw.Vds,
			Vbs:      sw.Vbs,
			ModelLib: job.ModelLib,
			Corner:   job.Corner,
			Output:   result,
		}
		params.SetDiffusion(job.Setup.Diffusion)

		ev := logging.AuditEvent{Device: fam.Name, Metric: m.ID, Deck: netlist, Output: result}

		if err := r.Renderer.RenderFile(netlist, m.Template, params.Model, params); err != nil {
			logging.SweepWarn("%s %s %s: %v", fam.Name, m.ID, p, err)
			ev.EventType = logging.AuditSimError
			ev.Error = err.Error()
			logging.Audit(ev)
			continue
		}

		ev.EventType = logging.AuditSimStart
		logging.Audit(ev)

		start := time.Now()
		res, err := r.Invoker.Run(ctx, netlist)
		ev.DurationMs = time.Since(start).Milliseconds()
		if res != nil {
			ev.ExitCode = res.ExitCode
		}
		if err != nil {
			logging.SweepWarn("%s %s %s: simulator failed: %v", fam.Name, m.ID, p, err)
			ev.EventType = logging.AuditSimError
			ev.Error = err.Error()
			logging.Audit(ev)
			continue
		}

		if _, err := os.Stat(result); err != nil {
			logging.SweepWarn("%s %s %s: no result file %s", fam.Name, m.ID, p, result)
			ev.EventType = logging.AuditSimMissing
			logging.Audit(ev)
			continue
		}
		ev.EventType = logging.AuditSimComplete
		logging.Audit(ev)
		pr.Files[m.ID] = result
		logging.SweepDebug("%s %s %s: %s", fam.Name, m.ID, p, result)
	}
	return pr
}
