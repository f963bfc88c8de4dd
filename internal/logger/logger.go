// Package logger provides a leveled printf-style logger backed by zap.
// It supports three levels: off (no output), normal (info/warn/error),
// and verbose (includes debug). The logger is safe for concurrent use.
package logger

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level controls the verbosity of the logger.
type Level int32

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// String returns the level name used in config files and flags.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelNormal:
		return "normal"
	case LevelVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// ParseLevel maps a config string to a Level. Unknown names yield LevelNormal
// and false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "off", "quiet", "none":
		return LevelOff, true
	case "normal", "info", "":
		return LevelNormal, true
	case "verbose", "debug":
		return LevelVerbose, true
	default:
		return LevelNormal, false
	}
}

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	level *atomic.Int32
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{level: new(atomic.Int32)}
	l.level.Store(int32(level))

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "T"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		switch Level(l.level.Load()) {
		case LevelOff:
			return false
		case LevelNormal:
			return lvl >= zapcore.InfoLevel
		default:
			return true
		}
	})

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(out),
		enabler,
	)
	l.base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.base.Sugar()
	return l
}

// Named returns a child logger that tags entries with name. The child shares
// the parent's level.
func (l *Logger) Named(name string) *Logger {
	child := &Logger{level: l.level, base: l.base.Named(name)}
	child.sugar = child.base.Sugar()
	return child
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// Zap exposes the underlying zap logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}
