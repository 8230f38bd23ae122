// Package sheet ingests vendor measurement workbooks and cuts them into the
// wide measured tables the error calculator compares against.
//
// Workbooks repeat the same header once per geometry block. Headers are
// de-duplicated on load the way spreadsheet tooling traditionally does it: the
// first occurrence keeps its name and later ones become "name.1", "name.2".
// Column lookups elsewhere depend on that convention.
package sheet

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mosregress/internal/table"
)

// Geometry column headers.
const (
	ColWidth  = "W (um)"
	ColLength = "L (um)"
	ColTemp   = "temp"
)

// Sheet is one loaded workbook.
type Sheet struct {
	Path   string
	Header []string   // de-duplicated
	Rows   [][]string // raw cells, padded to len(Header)
	Frame  *table.Frame
}

// Load reads the first worksheet of an .xlsx workbook, or a .csv file.
func Load(path string) (*Sheet, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported measurement file %s", path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("measurement file %s is empty", path)
	}
	return FromRecords(path, records), nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, fmt.Errorf("workbook %s has no worksheets", path)
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q of %s: %w", name, path, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// FromRecords builds a sheet from a header row and data rows.
func FromRecords(path string, records [][]string) *Sheet {
	header := DedupeHeader(records[0])
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	rows = trimTrailingBlank(rows)

	frame := table.New(table.Range(len(rows)))
	for c, name := range header {
		vals := make([]float64, len(rows))
		for r, row := range rows {
			vals[r] = table.ParseCell(row[c])
		}
		frame.AddColumn(name, vals)
	}
	return &Sheet{Path: path, Header: header, Rows: rows, Frame: frame}
}

// Workbooks often carry formatted but empty rows at the bottom.
func trimTrailingBlank(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && blank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// DedupeHeader renames repeated headers to name.1, name.2, ... and names
// empty headers "Unnamed: <position>".
func DedupeHeader(raw []string) []string {
	out := make([]string, len(raw))
	counts := make(map[string]int, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		if used[name] {
			n := counts[h]
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if !used[name] {
					break
				}
			}
			counts[h] = n
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// WriteCSV writes the normalized copy of the workbook.
func (s *Sheet) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.Write(s.Header); err != nil {
		file.Close()
		return err
	}
	if err := w.WriteAll(s.Rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// RowCount is the number of non-empty "L (um)" cells, which is how many
// geometry rows the workbook describes.
func (s *Sheet) RowCount() int {
	col, ok := s.Frame.Col(ColLength)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Geometry is one (width, length) row of the workbook.
type Geometry struct {
	Width, Length float64
}

// Geometry returns the rows with both width and length present. half keeps
// only the first floor(count/2) of them.
func (s *Sheet) Geometry(half bool) ([]Geometry, error) {
	if missing := s.Frame.Missing(ColLength, ColWidth); len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing, Device: s.Path}
	}
	sel, err := s.Frame.Select(ColLength, ColWidth)
	if err != nil {
		return nil, err
	}
	sel = sel.DropNA()
	n := sel.Len()
	if half {
		n = n / 2
	}
	out := make([]Geometry, n)
	for i := 0; i < n; i++ {
		out[i] = Geometry{Width: sel.Data[1][i], Length: sel.Data[0][i]}
	}
	return out, nil
}
