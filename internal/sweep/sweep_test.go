package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mosregress/internal/deck"
	"mosregress/internal/device"
	"mosregress/internal/sheet"
	"mosregress/internal/simulator"
	"mosregress/internal/simulator/simtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAssignTemperatures(t *testing.T) {
	assert.Equal(t, []int{25, 25, -40, -40, 125, 125, 25}, AssignTemperatures(7))
	assert.Equal(t, []int{25, -40, 125}, AssignTemperatures(3))
	assert.Equal(t, []int{25, 25}, AssignTemperatures(2))
	assert.Empty(t, AssignTemperatures(0))
}

func TestPointsCVFingersAndFixedTemp(t *testing.T) {
	cv, err := device.SuiteByID(device.SuiteCV)
	require.NoError(t, err)
	pts := Points([]sheet.Geometry{{Width: 10, Length: 10}, {Width: 0.22, Length: 0.28}}, cv)

	want := []Point{
		{Width: 10, Length: 10, Temp: 25, Fingers: 20},
		{Width: 0.22, Length: 0.28, Temp: 25, Fingers: 1},
	}
	if diff := cmp.Diff(want, pts); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}
}

func TestFileNaming(t *testing.T) {
	p := Point{Width: 10, Length: 0.28, Temp: -40}
	assert.Equal(t, "netlist_w10.0_l0.28_t-40.spice", NetlistName(device.NamingTempLW, p))
	assert.Equal(t, "T-40_simulated_L0.28_W10.0.csv", ResultName(device.NamingTempLW, p))
	assert.Equal(t, "T-40_simulated_W10.0_L0.28.csv", ResultName(device.NamingTempWL, p))
	assert.Equal(t, "netlist_w10.0_l0.28.spice", NetlistName(device.NamingWL, p))
	assert.Equal(t, "simulated_W10.0_L0.28.csv", ResultName(device.NamingWL, p))
}

func ivVgsJob(t *testing.T, dir string, pts []Point) Job {
	t.Helper()
	setup, err := device.Resolve(device.SuiteIVVgs, "nfet_03v3")
	require.NoError(t, err)
	return Job{
		Setup:    setup,
		Points:   pts,
		Dir:      dir,
		Metrics:  setup.Suite.Metrics,
		ModelLib: "design.ngspice",
		Corner:   "typical",
	}
}

func TestRunKeysResultsRegardlessOfCompletionOrder(t *testing.T) {
	dir := t.TempDir()
	pts := Points([]sheet.Geometry{
		{Width: 10, Length: 10}, {Width: 10, Length: 0.28}, {Width: 0.22, Length: 10},
		{Width: 5, Length: 5}, {Width: 1, Length: 1}, {Width: 2, Length: 2},
	}, mustSuite(t, device.SuiteIVVgs))

	fake := &simtest.Invoker{
		Produce: func(_, out string, _ []byte) ([]byte, bool) {
			// The widest points produce nothing.
			return []byte("v-sweep v(G_tn) -i(Vds)\n"), !strings.Contains(out, "_W10.0_")
		},
		// Earlier points finish last.
		Delay: func(deckPath string) time.Duration {
			if strings.Contains(deckPath, "netlist_w10.0") {
				return 30 * time.Millisecond
			}
			return 0
		},
	}
	r := &Runner{Renderer: deck.NewRenderer(""), Invoker: fake, Workers: 3}

	res, err := r.Run(context.Background(), ivVgsJob(t, dir, pts))
	require.NoError(t, err)
	require.Len(t, res, len(pts))

	for i, pr := range res {
		assert.Equal(t, pts[i], pr.Point, "results follow point order")
	}

	f, ok := res.Lookup(Key{Width: 10, Length: 10, Temp: 25}, "Id")
	require.True(t, ok)
	assert.Equal(t, NoFile, f)

	f, ok = res.Lookup(Key{Width: 5, Length: 5, Temp: -40}, "Rds")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "nfet_03v3_netlists_Rds", "T-40_simulated_W5.0_L5.0.csv"), f)
	_, err = os.Stat(f)
	assert.NoError(t, err)

	_, ok = res.Lookup(Key{Width: 5, Length: 5, Temp: 25}, "Rds")
	assert.False(t, ok)

	assert.Equal(t, 4, res.Produced("Id"))
	assert.Len(t, fake.Decks(), 2*len(pts))
}

func TestRunSimulatesDuplicateKeysOnce(t *testing.T) {
	dir := t.TempDir()
	pts := []Point{
		{Width: 1, Length: 1, Temp: 25, Fingers: 1},
		{Width: 2, Length: 2, Temp: 25, Fingers: 1},
		{Width: 1, Length: 1, Temp: 25, Fingers: 1},
	}
	fake := &simtest.Invoker{
		Produce: func(_, _ string, _ []byte) ([]byte, bool) {
			return []byte("v-sweep v(G_tn) -i(Vds)\n"), true
		},
	}
	r := &Runner{Renderer: deck.NewRenderer(""), Invoker: fake, Workers: 3}

	res, err := r.Run(context.Background(), ivVgsJob(t, dir, pts))
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Len(t, fake.Decks(), 2*2)

	assert.Equal(t, pts[2], res[2].Point)
	if diff := cmp.Diff(res[0].Files, res[2].Files); diff != "" {
		t.Errorf("duplicate point files mismatch (-first +dup):\n%s", diff)
	}
	assert.Equal(t, filepath.Join(dir, "nfet_03v3_netlists_Id", "T25_simulated_W1.0_L1.0.csv"), res[2].Files["Id"])
	assert.Equal(t, 3, res.Produced("Id"))
}

type failingRenderer struct{}

func (failingRenderer) RenderFile(string, string, string, deck.Params) error {
	return errors.New("template exploded")
}

func TestRenderFailureIsRecordedNotRaised(t *testing.T) {
	var calls atomic.Int32
	inv := invokerFunc(func(context.Context, string) (*simulator.Result, error) {
		calls.Add(1)
		return &simulator.Result{}, nil
	})
	r := &Runner{Renderer: failingRenderer{}, Invoker: inv, Workers: 2}

	pts := []Point{{Width: 1, Length: 1, Temp: 25, Fingers: 1}}
	res, err := r.Run(context.Background(), ivVgsJob(t, t.TempDir(), pts))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Id": NoFile, "Rds": NoFile}, res[0].Files)
	assert.Zero(t, calls.Load())
}

func TestInvokerErrorIsRecordedNotRaised(t *testing.T) {
	inv := invokerFunc(func(context.Context, string) (*simulator.Result, error) {
		return nil, errors.New("exec: not found")
	})
	r := &Runner{Renderer: deck.NewRenderer(""), Invoker: inv}

	pts := []Point{{Width: 1, Length: 1, Temp: 25, Fingers: 1}}
	res, err := r.Run(context.Background(), ivVgsJob(t, t.TempDir(), pts))
	require.NoError(t, err)
	assert.Equal(t, NoFile, res[0].Files["Id"])
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Renderer: deck.NewRenderer(""), Invoker: &simtest.Invoker{}, Workers: 1}

	pts := []Point{{Width: 1, Length: 1, Temp: 25, Fingers: 1}}
	_, err := r.Run(ctx, ivVgsJob(t, t.TempDir(), pts))
	assert.ErrorIs(t, err, context.Canceled)
}

type invokerFunc func(context.Context, string) (*simulator.Result, error)

func (f invokerFunc) Run(ctx context.Context, deck string) (*simulator.Result, error) {
	return f(ctx, deck)
}

func mustSuite(t *testing.T, id device.SuiteID) device.Suite {
	t.Helper()
	s, err := device.SuiteByID(id)
	require.NoError(t, err)
	return s
}
