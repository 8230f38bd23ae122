package compare

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"mosregress/internal/device"
	"mosregress/internal/table"
)

// ResultsDBName is the SQLite file written into a device directory.
const ResultsDBName = "error_analysis.db"

// SQLiteSink mirrors summary rows into an rms_summary table.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	device string
	runID  string
	mu     sync.Mutex
}

// OpenSQLiteSink creates or opens the results database at path.
func OpenSQLiteSink(path, deviceName, runID string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteSink{db: db, path: path, device: deviceName, runID: runID}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS rms_summary (
		run_id TEXT NOT NULL,
		device TEXT NOT NULL,
		metric TEXT NOT NULL,
		config INTEGER NOT NULL,
		temp INTEGER NOT NULL,
		width REAL NOT NULL,
		length REAL NOT NULL,
		rms_error REAL,
		PRIMARY KEY (run_id, device, metric, config)
	);
	CREATE INDEX IF NOT EXISTS idx_rms_summary_metric ON rms_summary(device, metric);
	`)
	return err
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// Write replaces the metric's rows. NaN errors are stored as NULL.
func (s *SQLiteSink) Write(m device.Metric, _ *table.Frame, summary []SummaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO rms_summary
		(run_id, device, metric, config, temp, width, length, rms_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range summary {
		var rms interface{}
		if !math.IsNaN(r.RMSError) && !math.IsInf(r.RMSError, 0) {
			rms = r.RMSError
		}
		if _, err := stmt.Exec(s.runID, s.device, m.ID, i, r.Temp, r.Width, r.Length, rms); err != nil {
			return fmt.Errorf("failed to store summary row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Summary reads back the stored rows of a metric in configuration order.
func (s *SQLiteSink) Summary(metric string) ([]SummaryRow, error) {
	rows, err := s.db.Query(`SELECT temp, width, length, rms_error FROM rms_summary
		WHERE run_id = ? AND device = ? AND metric = ? ORDER BY config`, s.runID, s.device, metric)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var (
			r   SummaryRow
			rms sql.NullFloat64
		)
		if err := rows.Scan(&r.Temp, &r.Width, &r.Length, &rms); err != nil {
			return nil, err
		}
		r.RMSError = math.NaN()
		if rms.Valid {
			r.RMSError = rms.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
