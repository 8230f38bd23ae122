package compare

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"mosregress/internal/device"
	"mosregress/internal/table"
)

// SummaryHeader is the header of final_error_analysis files.
var SummaryHeader = []string{"temp", "W (um)", "L (um)", "rms_error"}

// CSVSink writes error_analysis<suffix>.csv and final_error_analysis<suffix>.csv
// into Dir.
type CSVSink struct {
	Dir string
}

// BreakdownPath is where the breakdown of m is written.
func (s CSVSink) BreakdownPath(m device.Metric) string {
	return filepath.Join(s.Dir, "error_analysis"+m.Suffix+".csv")
}

// SummaryPath is where the summary of m is written.
func (s CSVSink) SummaryPath(m device.Metric) string {
	return filepath.Join(s.Dir, "final_error_analysis"+m.Suffix+".csv")
}

func (s CSVSink) Write(m device.Metric, breakdown *table.Frame, summary []SummaryRow) error {
	if err := breakdown.SaveCSV(s.BreakdownPath(m)); err != nil {
		return err
	}
	return WriteSummaryCSV(s.SummaryPath(m), summary)
}

// WriteSummaryCSV writes summary rows with SummaryHeader.
func WriteSummaryCSV(path string, rows []SummaryRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeSummary(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeSummary(out io.Writer, rows []SummaryRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rms := ""
		if !math.IsNaN(r.RMSError) {
			rms = table.FormatFloat(r.RMSError)
		}
		if err := w.Write([]string{strconv.Itoa(r.Temp), table.FormatFloat(r.Width), table.FormatFloat(r.Length), rms}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadSummaryCSV loads a final_error_analysis file.
func ReadSummaryCSV(path string) ([]SummaryRow, error) {
	f, err := table.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	sel, err := f.Select(SummaryHeader...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows := make([]SummaryRow, sel.Len())
	for i := range rows {
		rows[i] = SummaryRow{
			Temp:     int(sel.Data[0][i]),
			Width:    sel.Data[1][i],
			Length:   sel.Data[2][i],
			RMSError: sel.Data[3][i],
		}
	}
	return rows, nil
}

