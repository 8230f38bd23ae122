package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosregress/internal/device"
)

func TestDedupeHeader(t *testing.T) {
	got := DedupeHeader([]string{"a", "b", "a", "", "a", "a.1"})
	assert.Equal(t, []string{"a", "b", "a.1", "Unnamed: 3", "a.2", "a.1.1"}, got)
}

func TestLoadCSVTrimsBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.csv")
	data := "W (um),L (um),x,x\n10,0.28,1,2\n,,3,4\n,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"W (um)", "L (um)", "x", "x.1"}, s.Header)
	assert.Equal(t, 2, s.Frame.Len())
	assert.Equal(t, 1, s.RowCount())

	col, ok := s.Frame.Col("x.1")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4}, col)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load("data.txt")
	assert.Error(t, err)
}

func TestGeometryHalf(t *testing.T) {
	s := FromRecords("g.csv", [][]string{
		{"W (um)", "L (um)"},
		{"10", "10"},
		{"10", "0.28"},
		{"0.22", "10"},
		{"", ""},
	})
	all, err := s.Geometry(false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, Geometry{Width: 0.22, Length: 10}, all[2])

	half, err := s.Geometry(true)
	require.NoError(t, err)
	assert.Equal(t, []Geometry{{Width: 10, Length: 10}}, half)
}

func TestGeometryMissingColumns(t *testing.T) {
	s := FromRecords("g.csv", [][]string{{"x"}, {"1"}})
	_, err := s.Geometry(false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

// ivVbsRecords builds a one-row iv_vbs workbook for nfet_03v3: block 0 and
// block 1 side by side.
func ivVbsRecords() [][]string {
	levels := []string{"vbs =0", "vbs =-0.825", "vbs =-1.65", "vbs =-2.48", "vbs =-3.3"}
	header := []string{"W (um)", "L (um)", "Id (A)", "vgs "}
	header = append(header, levels...)
	header = append(header, "vgs (V)")
	header = append(header, levels...)

	row0 := []string{"10", "0.28", "0", "0", "1e-9", "2e-9", "3e-9", "4e-9", "5e-9", "0", "6e-9", "7e-9", "8e-9", "9e-9", "1e-8"}
	row1 := []string{"", "", "1", "0.05", "1e-7", "2e-7", "3e-7", "4e-7", "5e-7", "0.05", "6e-7", "7e-7", "8e-7", "9e-7", "1e-6"}
	return [][]string{header, row0, row1}
}

func TestExtractIVVbs(t *testing.T) {
	s := FromRecords("nfet_03v3_iv.csv", ivVbsRecords())
	setup, err := device.Resolve(device.SuiteIVVbs, "nfet_03v3")
	require.NoError(t, err)

	tables, err := NewExtractor().Extract(s, setup)
	require.NoError(t, err)

	iv := tables[device.TableIV]
	require.NotNil(t, iv)
	assert.Equal(t, 2, iv.Len())
	assert.Equal(t, 2, tables.Rows())

	b0, ok := iv.Col("measured_vbs0 =-2.48")
	require.True(t, ok)
	assert.Equal(t, []float64{4e-9, 4e-7}, b0)

	b1, ok := iv.Col("measured_vbs1 =-3.3")
	require.True(t, ok)
	assert.Equal(t, []float64{1e-8, 1e-6}, b1)

	w, ok := iv.Col(ColWidth)
	require.True(t, ok)
	assert.Equal(t, []float64{10, 10}, w)

	temp, ok := iv.Col(ColTemp)
	require.True(t, ok)
	assert.Equal(t, 25.0, temp[0])
}

func TestExtractMissingColumnsNamesAll(t *testing.T) {
	records := ivVbsRecords()
	// drop "vbs =-3.3" from block 0 and "vgs (V)"
	header := records[0]
	header[8] = "junk"
	header[9] = "other"

	s := FromRecords("nfet_03v3_iv.csv", records)
	setup, err := device.Resolve(device.SuiteIVVbs, "nfet_03v3")
	require.NoError(t, err)

	_, err = NewExtractor().Extract(s, setup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "nfet_03v3", mce.Device)
	assert.Contains(t, mce.Columns, "vgs (V)")
	assert.Contains(t, mce.Columns, "vbs =-3.3.1")
}

func TestExtractEmptyWorkbookYieldsEmptyTables(t *testing.T) {
	s := FromRecords("e.csv", [][]string{{"W (um)", "L (um)"}})
	setup, err := device.Resolve(device.SuiteCV, "nfet_03v3")
	require.NoError(t, err)

	tables, err := NewExtractor().Extract(s, setup)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
	assert.Equal(t, 0, tables.Rows())
}

func TestExtractCVBlocksPerRow(t *testing.T) {
	vbs := []string{"Vbs=0", "Vbs=-0.825", "Vbs=-1.65", "Vbs=-2.475", "Vbs=-3.3"}
	vgs := []string{"Vgs=0", "Vgs=1.1", "Vgs=2.2", "Vgs=3.3"}
	header := []string{"W (um)", "L (um)", "Vgs (V)"}
	header = append(header, vbs...)
	header = append(header, "Vds (V)")
	header = append(header, vgs...)
	header = append(header, vgs...)

	row := func(w, l string, base int) []string {
		out := []string{w, l, "0"}
		for i := 0; i < 5; i++ {
			out = append(out, strconv.Itoa(base+i))
		}
		out = append(out, "0")
		for i := 0; i < 8; i++ {
			out = append(out, strconv.Itoa(base+10+i))
		}
		return out
	}
	s := FromRecords("cv.csv", [][]string{header, row("10", "10", 1), row("10", "10", 100)})
	setup, err := device.Resolve(device.SuiteCV, "nfet_03v3")
	require.NoError(t, err)

	tables, err := NewExtractor().Extract(s, setup)
	require.NoError(t, err)

	cgd := tables[device.TableCgd]
	col, ok := cgd.Col("measured_vgs0=2.2")
	require.True(t, ok)
	// Cgd reads the second copy of the Vgs headers.
	assert.Equal(t, []float64{17, 116}, col)

	cgs := tables[device.TableCgs]
	col, ok = cgs.Col("measured_vgs0=2.2")
	require.True(t, ok)
	assert.Equal(t, []float64{13, 112}, col)
	assert.False(t, cgs.Has(ColTemp))
}

func TestMeasuredBlock(t *testing.T) {
	s := FromRecords("nfet_03v3_iv.csv", ivVbsRecords())
	setup, err := device.Resolve(device.SuiteIVVbs, "nfet_03v3")
	require.NoError(t, err)
	tables, err := NewExtractor().Extract(s, setup)
	require.NoError(t, err)

	layout, _ := setup.Suite.Table(device.TableIV)
	m, _ := setup.Suite.Metric("Id")
	lv := setup.LevelsFor(m)

	f, err := MeasuredBlock(tables[device.TableIV], layout, m, lv, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"measured_vbs1", "measured_vbs2", "measured_vbs3", "measured_vbs4", "measured_vbs5"}, f.Columns)

	_, err = MeasuredBlock(tables[device.TableIV], layout, m, lv, 7)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	empty, err := MeasuredBlock(nil, layout, m, lv, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, empty.Width())
	assert.Equal(t, 0, empty.Len())
}
