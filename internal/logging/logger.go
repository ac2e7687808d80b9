// Package logging provides categorized structured logging for hermitbase.
// Every subsystem logs through a named child of a single zap root logger, so
// one line of output always carries the category that produced it.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, shutdown, CLI
	CategoryState    Category = "state"    // Lifecycle state persistence
	CategoryLife     Category = "life"     // Action selection and execution
	CategoryMolt     Category = "molt"     // Molt decisions and transitions
	CategoryLoop     Category = "loop"     // Control loop iterations, backoff
	CategorySocial   Category = "social"   // Farcaster posting and mentions
	CategoryAdvisory Category = "advisory" // LLM advisory calls
	CategoryLedger   Category = "ledger"   // Chain RPC and signing
	CategoryArchive  Category = "archive"  // Shell archive (sqlite)
	CategoryConfig   Category = "config"   // Config load and reload
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root logger. Until it is called every logger is a no-op,
// which keeps library code and tests quiet.
func Initialize(opts Options) error {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l)
	return nil
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SetLogger replaces the root logger and drops cached category loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*Logger)
}

// Root returns the underlying zap logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Sync flushes buffered entries (call at shutdown).
func Sync() {
	// stderr sync returns EINVAL on some platforms; nothing useful to do with it
	_ = Root().Sync()
}

// Get returns (or creates) a logger for the given category.
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
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		category: l.category,
		sugar:    l.sugar.Desugar().With(fields...).Sugar(),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Fatalf writes to stderr and exits. Reserved for CLI entry points.
func Fatalf(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
	Sync()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// State logs to the state category
func State(format string, args ...interface{}) { Get(CategoryState).Info(format, args...) }

// StateDebug logs debug to the state category
func StateDebug(format string, args ...interface{}) { Get(CategoryState).Debug(format, args...) }

// Life logs to the life category
func Life(format string, args ...interface{}) { Get(CategoryLife).Info(format, args...) }

// LifeDebug logs debug to the life category
func LifeDebug(format string, args ...interface{}) { Get(CategoryLife).Debug(format, args...) }

// Molt logs to the molt category
func Molt(format string, args ...interface{}) { Get(CategoryMolt).Info(format, args...) }

// MoltDebug logs debug to the molt category
func MoltDebug(format string, args ...interface{}) { Get(CategoryMolt).Debug(format, args...) }

// Loop logs to the loop category
func Loop(format string, args ...interface{}) { Get(CategoryLoop).Info(format, args...) }

// LoopDebug logs debug to the loop category
func LoopDebug(format string, args ...interface{}) { Get(CategoryLoop).Debug(format, args...) }

// Social logs to the social category
func Social(format string, args ...interface{}) { Get(CategorySocial).Info(format, args...) }

// SocialDebug logs debug to the social category
func SocialDebug(format string, args ...interface{}) { Get(CategorySocial).Debug(format, args...) }

// Advisory logs to the advisory category
func Advisory(format string, args ...interface{}) { Get(CategoryAdvisory).Info(format, args...) }

// AdvisoryDebug logs debug to the advisory category
func AdvisoryDebug(format string, args ...interface{}) {
	Get(CategoryAdvisory).Debug(format, args...)
}

// Ledger logs to the ledger category
func Ledger(format string, args ...interface{}) { Get(CategoryLedger).Info(format, args...) }

// LedgerDebug logs debug to the ledger category
func LedgerDebug(format string, args ...interface{}) { Get(CategoryLedger).Debug(format, args...) }

// Archive logs to the archive category
func Archive(format string, args ...interface{}) { Get(CategoryArchive).Info(format, args...) }

// Config logs to the config category
func Config(format string, args ...interface{}) { Get(CategoryConfig).Info(format, args...) }
