// Package logging provides config-driven categorized file-based logging for gopad.
// Logs are written to .gopad/logs/ with separate files per category.
// Logging is controlled by debug_mode in .gopad/config.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategorySession Category = "session" // Session coordinator, runs
	CategoryEngine  Category = "engine"  // Execution bridge and interpreter
	CategoryLedger  Category = "ledger"  // History ledger appends and resets
	CategoryStore   Category = "store"   // SQLite persistence, code store writes
	CategoryPreview Category = "preview" // Debounced tree preview scheduling
	CategoryShare   Category = "share"   // Share-link encode/decode
	CategoryWatch   Category = "watch"   // Editor file watcher
	CategoryUI      Category = "ui"      // Terminal front end
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryBoot, CategorySession, CategoryEngine, CategoryLedger, CategoryStore,
	CategoryPreview, CategoryShare, CategoryWatch, CategoryUI,
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap sugared logger bound to one category and its log file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	nop       = zap.NewNop().Sugar()
)

// Initialize sets up the logging directory for the workspace.
// Should be called once at startup. With DebugMode off it is a silent no-op.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	optsMu.Lock()
	opts = o
	level.SetLevel(parseLevel(o.Level))
	logsDir = filepath.Join(workspace, ".gopad", "logs")
	optsMu.Unlock()

	if !o.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== gopad logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", level.Level())
	if len(o.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
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

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: nop}
	}

	optsMu.RLock()
	dir, jsonFormat := logsDir, opts.JSONFormat
	optsMu.RUnlock()
	if dir == "" {
		return &Logger{category: category, sugar: nop}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category, sugar: nop}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(file), level)

	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger that attaches key-value context to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...), file: l.file}
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// CloseAll syncs and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.sugar.Sync()
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// Session logs to the session category
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// Engine logs to the engine category
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// LedgerDebug logs debug to the ledger category
func LedgerDebug(format string, args ...interface{}) { Get(CategoryLedger).Debug(format, args...) }

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// PreviewDebug logs debug to the preview category
func PreviewDebug(format string, args ...interface{}) { Get(CategoryPreview).Debug(format, args...) }

// ShareDebug logs debug to the share category
func ShareDebug(format string, args ...interface{}) { Get(CategoryShare).Debug(format, args...) }

// Watch logs to the watch category
func Watch(format string, args ...interface{}) { Get(CategoryWatch).Info(format, args...) }

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }

// UIDebug logs debug to the ui category
func UIDebug(format string, args ...interface{}) { Get(CategoryUI).Debug(format, args...) }

// =============================================================================
// TIMERS
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

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
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
