// Package logx wires zap into the pipeline stages without letting the core
// own a process-wide logger. Per the engine's error-handling design, nothing
// is logged from inside the core unless an embedder hands one in; a nil
// logger is silently replaced with a no-op so every stage can log
// unconditionally.
package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one of the seven pipeline stages, mirroring the way the
// file-logger this package descends from scoped entries to a category.
type Category string

const (
	Parse        Category = "parse"
	Semantic     Category = "semantic"
	Domain       Category = "domain"
	Rules        Category = "rules"
	Impact       Category = "impact"
	Architecture Category = "architecture"
	Report       Category = "report"
)

// NewProduction builds a production zap logger, or a development one with
// debug level and console-encoded output when verbose is set. Grounded on
// the root command's PersistentPreRunE logger bootstrap.
func NewProduction(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Sugared returns a nil-safe sugared logger for a stage: a nil *zap.Logger
// becomes a no-op sugared logger instead of panicking on first use.
func Sugared(l *zap.Logger, cat Category) *zap.SugaredLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String("stage", string(cat))).Sugar()
}
