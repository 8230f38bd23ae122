package sheet

import (
	"fmt"
	"sort"
	"strings"

	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/table"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = table.ErrMissingColumn

// MissingColumnError names every header a workbook lacks for one device.
type MissingColumnError struct {
	Columns []string
	Device  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: workbook is missing %d column(s): %s", e.Device, len(e.Columns), strings.Join(e.Columns, ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Tables maps a measured table name to its wide frame.
type Tables map[string]*table.Frame

// Rows returns the total row count across tables.
func (t Tables) Rows() int {
	n := 0
	for _, f := range t {
		n += f.Len()
	}
	return n
}

// block is one slice of a measured table: one geometry row's columns.
type block struct {
	index   int
	row     int
	temp    float64
	hasTemp bool
	sweep   string
	extra   string
	levels  []string // source headers, parallel to the level set
}

// Extractor cuts measured tables out of a workbook.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract produces one wide table per layout of the setup's suite. Every
// required header is checked before any slicing; a workbook with missing
// headers fails with a MissingColumnError naming all of them.
func (x *Extractor) Extract(s *Sheet, setup *device.Setup) (Tables, error) {
	fam := setup.Family
	count := s.RowCount()

	plans := make(map[string][]block, len(setup.Suite.Tables))
	required := []string{ColWidth, ColLength}
	for _, layout := range setup.Suite.Tables {
		lv := setup.Levels[layout.LevelSet]
		if len(lv) == 0 {
			return nil, fmt.Errorf("%s: no %s levels for table %s", fam.Name, layout.LevelSet, layout.Name)
		}
		blocks := planBlocks(layout, fam, lv, count)
		plans[layout.Name] = blocks
		for _, b := range blocks {
			if b.extra != "" {
				required = append(required, b.extra)
			}
			required = append(required, b.sweep)
			required = append(required, b.levels...)
		}
	}

	if missing := uniqueMissing(s.Frame, required); len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing, Device: fam.Name}
	}

	widths, _ := s.Frame.Col(ColWidth)
	lengths, _ := s.Frame.Col(ColLength)

	out := make(Tables, len(setup.Suite.Tables))
	for _, layout := range setup.Suite.Tables {
		lv := setup.Levels[layout.LevelSet]
		var frames []*table.Frame
		for _, b := range plans[layout.Name] {
			f, err := cutBlock(s.Frame, layout, lv, b, widths[b.row], lengths[b.row])
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
		}
		merged := table.ConcatColumns(frames...).DropDuplicates()
		logging.ExtractDebug("%s: table %s has %d blocks, %d rows, %d columns",
			fam.Name, layout.Name, len(frames), merged.Len(), merged.Width())
		out[layout.Name] = merged
	}
	return out, nil
}

// planBlocks lists the blocks of one table for a workbook with count rows.
func planBlocks(layout device.TableLayout, fam device.Family, lv []device.Level, count int) []block {
	levelHeaders := func(b int) []string {
		prefix := layout.LevelPrefix.For(fam)
		suffix := layout.LevelSuffix.At(b)
		hs := make([]string, len(lv))
		for k, l := range lv {
			hs[k] = device.Suffixed(prefix+l.Label, suffix)
		}
		return hs
	}

	var blocks []block
	switch layout.Scheme {
	case device.BlocksPerHalfRow:
		if count == 0 {
			return nil
		}
		blocks = append(blocks, block{
			index:   0,
			row:     0,
			temp:    25,
			hasTemp: layout.Temp,
			sweep:   layout.FirstSweep.For(fam),
			extra:   layout.FirstExtra.For(fam),
			levels:  levelHeaders(0),
		})
		third := (2 * count) / 3
		for i := 0; i < 2*count-1; i++ {
			blocks = append(blocks, block{
				index:   i + 1,
				row:     i / 2,
				temp:    bucketTemp(i, third),
				hasTemp: layout.Temp,
				sweep:   device.Suffixed(layout.Sweep.For(fam), i),
				levels:  levelHeaders(i + 1),
			})
		}
	case device.BlocksPerRow:
		for i := 0; i < count/2; i++ {
			blocks = append(blocks, block{
				index:  i,
				row:    i,
				sweep:  layout.Sweep.For(fam),
				levels: levelHeaders(i),
			})
		}
	}
	return blocks
}

// bucketTemp assigns 25, -40 and 125 to successive runs of width third;
// anything past the second run is 125.
func bucketTemp(i, third int) float64 {
	switch {
	case i < third:
		return 25
	case i < 2*third:
		return -40
	default:
		return 125
	}
}

func cutBlock(src *table.Frame, layout device.TableLayout, lv []device.Level, b block, width, length float64) (*table.Frame, error) {
	cols := make([]string, 0, len(b.levels)+2)
	if b.extra != "" {
		cols = append(cols, b.extra)
	}
	cols = append(cols, b.sweep)
	cols = append(cols, b.levels...)

	f, err := src.Select(cols...)
	if err != nil {
		return nil, err
	}

	off := 0
	if b.extra != "" {
		off = 1
	}
	f.Columns[off] = layout.SweepName
	for k, l := range lv {
		f.Columns[off+1+k] = layout.MeasuredName(b.index, l.Label)
	}

	f.Const(ColWidth, width)
	f.Const(ColLength, length)
	if b.hasTemp {
		f.Const(ColTemp, b.temp)
	}
	return f.DropNA(), nil
}

func uniqueMissing(f *table.Frame, names []string) []string {
	seen := make(map[string]bool, len(names))
	var missing []string
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}

// MeasuredBlock selects block's level columns from a measured table and
// renames them with the metric's canonical names. An empty or short table
// yields NaN columns.
func MeasuredBlock(measured *table.Frame, layout device.TableLayout, m device.Metric, lv []device.Level, blockIndex int) (*table.Frame, error) {
	if measured == nil || measured.Width() == 0 {
		out := table.New(nil)
		for k := range lv {
			out.AddColumn(m.MeasuredColumn(k), nil)
		}
		return out, nil
	}
	names := make([]string, len(lv))
	for k, l := range lv {
		names[k] = layout.MeasuredName(blockIndex, l.Label)
	}
	f, err := measured.Select(names...)
	if err != nil {
		return nil, fmt.Errorf("measured block %d: %w", blockIndex, err)
	}
	for k := range lv {
		f.Columns[k] = m.MeasuredColumn(k)
	}
	return f, nil
}
