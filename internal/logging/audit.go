package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType names one simulator lifecycle event.
type AuditEventType string

const (
	AuditSimStart    AuditEventType = "sim_start"
	AuditSimComplete AuditEventType = "sim_complete" // result file present
	AuditSimMissing  AuditEventType = "sim_missing"  // ran, but produced no result file
	AuditSimError    AuditEventType = "sim_error"    // render or launch failure
)

// AuditFileName is created under the work directory.
const AuditFileName = "simulator_audit.jsonl"

// AuditEvent is one JSON line of the simulator audit trail.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	RunID      string         `json:"run_id,omitempty"`
	Device     string         `json:"device,omitempty"`
	Metric     string         `json:"metric,omitempty"`
	Deck       string         `json:"deck,omitempty"`
	Output     string         `json:"output,omitempty"`
	ExitCode   int            `json:"exit_code"`
	DurationMs int64          `json:"dur_ms"`
	Error      string         `json:"error,omitempty"`
}

var (
	auditMu    sync.Mutex
	auditFile  *os.File
	auditRunID string
)

// InitAudit opens <workDir>/simulator_audit.jsonl for appending. It is a no-op
// unless debug mode is on.
func InitAudit(workDir, runID string) error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(workDir, AuditFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = f
	auditRunID = runID
	return nil
}

// AuditEnabled reports whether events are being recorded.
func AuditEnabled() bool {
	auditMu.Lock()
	defer auditMu.Unlock()
	return auditFile != nil
}

// Audit appends one event. Safe for concurrent use by sweep workers.
func Audit(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = auditRunID
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = auditFile.Write(append(data, '\n'))
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
	}
	auditRunID = ""
}
