// Package logging provides categorized logging for mosregress on top of zap.
// Every category shares one zap core; the category becomes the logger name so
// console lines read "<time> INFO sweep ...". Categories can be silenced
// individually through the logging.categories config map.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config, version probe
	CategoryExtract   Category = "extract"   // Workbook ingestion and measured tables
	CategoryDeck      Category = "deck"      // Netlist rendering
	CategorySimulator Category = "simulator" // ngspice invocations
	CategorySweep     Category = "sweep"     // Worker pool dispatch
	CategoryReshape   Category = "reshape"   // Result pivots
	CategoryCompare   Category = "compare"   // Error calculation and sinks
	CategoryReport    Category = "report"    // Stats, verdicts, plots
	CategoryDriver    Category = "driver"    // Regression state machine
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryBoot, CategoryExtract, CategoryDeck, CategorySimulator, CategorySweep,
	CategoryReshape, CategoryCompare, CategoryReport, CategoryDriver,
}

// ConsoleTimeLayout is the timestamp layout of console lines.
const ConsoleTimeLayout = "02-Jan-2006 15:04:05"

// Options mirrors config.LoggingConfig without importing it.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // console or json
	File       string          // optional extra JSON log file
	DebugMode  bool            // forces debug level and enables the audit trail
	Categories map[string]bool // false silences a category
	Output     io.Writer       // defaults to stderr
}

// Logger is a category-scoped printf logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	options  Options
	loggers  = make(map[Category]*Logger)
	logFile  *os.File
	runField []interface{}
)

// ParseLevel maps a level name to a zap level. Unknown names are info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(ConsoleTimeLayout)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return cfg
}

// Initialize builds the shared zap core. It may be called again to reconfigure;
// previously handed out loggers are rebuilt on their next Get.
func Initialize(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()

	level := ParseLevel(opts.Level)
	if opts.DebugMode {
		level = zapcore.DebugLevel
	}
	enabler := zap.NewAtomicLevelAt(level)

	encCfg := encoderConfig()
	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), enabler)}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), enabler))
	}

	base = zap.New(zapcore.NewTee(cores...))
	options = opts
	loggers = make(map[Category]*Logger)
	return nil
}

// SetRunID stamps every subsequent line with run_id.
func SetRunID(id string) {
	mu.Lock()
	defer mu.Unlock()
	if id == "" {
		runField = nil
	} else {
		runField = []interface{}{"run_id", id}
	}
	loggers = make(map[Category]*Logger)
}

// Base returns the underlying zap logger, for libraries that want one.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled reports whether a category writes anything.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if options.Categories == nil {
		return true
	}
	enabled, ok := options.Categories[string(category)]
	return !ok || enabled
}

// IsDebugMode reports whether debug mode was requested.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return options.DebugMode
}

// Get returns the logger for a category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	z := zap.NewNop()
	if categoryEnabledLocked(category) {
		z = base.Named(string(category))
	}
	sugar := z.Sugar()
	if len(runField) > 0 {
		sugar = sugar.With(runField...)
	}
	l := &Logger{category: category, sugar: sugar}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// With returns a child logger carrying extra key/value fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered output.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// CloseAll flushes and closes the log file and audit trail.
func CloseAll() {
	mu.Lock()
	_ = base.Sync()
	closeFileLocked()
	base = zap.NewNop()
	loggers = make(map[Category]*Logger)
	mu.Unlock()
	CloseAudit()
}

func closeFileLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// =============================================================================
// Convenience functions
// =============================================================================

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Extract(format string, args ...interface{})      { Get(CategoryExtract).Info(format, args...) }
func ExtractDebug(format string, args ...interface{}) { Get(CategoryExtract).Debug(format, args...) }
func ExtractWarn(format string, args ...interface{})  { Get(CategoryExtract).Warn(format, args...) }

func DeckDebug(format string, args ...interface{}) { Get(CategoryDeck).Debug(format, args...) }

func Simulator(format string, args ...interface{})      { Get(CategorySimulator).Info(format, args...) }
func SimulatorDebug(format string, args ...interface{}) { Get(CategorySimulator).Debug(format, args...) }
func SimulatorWarn(format string, args ...interface{})  { Get(CategorySimulator).Warn(format, args...) }

func Sweep(format string, args ...interface{})      { Get(CategorySweep).Info(format, args...) }
func SweepDebug(format string, args ...interface{}) { Get(CategorySweep).Debug(format, args...) }
func SweepWarn(format string, args ...interface{})  { Get(CategorySweep).Warn(format, args...) }

func ReshapeDebug(format string, args ...interface{}) { Get(CategoryReshape).Debug(format, args...) }
func ReshapeWarn(format string, args ...interface{})  { Get(CategoryReshape).Warn(format, args...) }

func Compare(format string, args ...interface{})      { Get(CategoryCompare).Info(format, args...) }
func CompareDebug(format string, args ...interface{}) { Get(CategoryCompare).Debug(format, args...) }

func Report(format string, args ...interface{})      { Get(CategoryReport).Info(format, args...) }
func ReportError(format string, args ...interface{}) { Get(CategoryReport).Error(format, args...) }

func Driver(format string, args ...interface{})      { Get(CategoryDriver).Info(format, args...) }
func DriverDebug(format string, args ...interface{}) { Get(CategoryDriver).Debug(format, args...) }
func DriverWarn(format string, args ...interface{})  { Get(CategoryDriver).Warn(format, args...) }
func DriverError(format string, args ...interface{}) { Get(CategoryDriver).Error(format, args...) }

// =============================================================================
// Timers
// =============================================================================

// Timer measures one operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
