package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FormatFloat renders v the way the regression outputs have always spelled
// numbers: shortest round-trip digits, fixed notation in the usual range with
// a trailing ".0" for integral values, exponent notation outside it.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(v, 'e', -1, 64)
}

// ParseCell converts a cell to float64. Empty and non-numeric cells are NaN.
func ParseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func csvCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return FormatFloat(v)
}

// WriteCSV writes a header row followed by one line per row. NaN cells are empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	record := make([]string, len(f.Columns))
	for r := 0; r < f.Len(); r++ {
		for c := range f.Columns {
			record[c] = csvCell(f.Data[c][r])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the frame to path, creating parent directories.
func (f *Frame) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// ReadCSV parses a comma-separated table with a header row. Rows are labelled
// 0..n-1 in file order.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	header := records[0]
	rows := records[1:]
	out := New(Range(len(rows)))
	for c, name := range header {
		vals := make([]float64, len(rows))
		for r, rec := range rows {
			if c < len(rec) {
				vals[r] = ParseCell(rec[c])
			} else {
				vals[r] = math.NaN()
			}
		}
		out.Columns = append(out.Columns, name)
		out.Data = append(out.Data, vals)
	}
	return out, nil
}

// LoadCSV reads a frame from path.
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}
