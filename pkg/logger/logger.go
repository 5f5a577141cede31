package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/rs/zerolog"

	"github.com/wonny/b3factor/backend/pkg/config"
)

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: all logging goes through this package
type Logger struct {
	zlog zerolog.Logger

	// once is shared by every logger derived from the same run
	once *haxmap.Map[string, struct{}]
}

// New creates a new Logger instance from config
// ⭐ SSOT: the zerolog instance is created only here
func New(cfg *config.Config) *Logger {
	var output io.Writer = os.Stdout
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newLogger(output, cfg)
}

// NewWithWriter creates a logger writing JSON lines to w (tests, tools)
func NewWithWriter(w io.Writer) *Logger {
	return newLogger(w, &config.Config{LogLevel: "debug"})
}

func newLogger(w io.Writer, cfg *config.Config) *Logger {
	ctx := zerolog.New(w).Level(parseLogLevel(cfg.LogLevel)).With().Timestamp()
	if cfg.Env != "" {
		ctx = ctx.Str("env", cfg.Env)
	}
	return &Logger{zlog: ctx.Logger(), once: haxmap.New[string, struct{}]()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), once: haxmap.New[string, struct{}]()}
}

// parseLogLevel maps LOG_LEVEL to a zerolog level, info when unknown
func parseLogLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// WarnOnce logs msg at warn level the first time key is seen in the current run.
// Returns true when the warning was emitted.
func (l *Logger) WarnOnce(key, msg string) bool {
	if _, loaded := l.once.GetOrSet(key, struct{}{}); loaded {
		return false
	}
	l.zlog.Warn().Str("warn_key", key).Msg(msg)
	return true
}

// ForRun returns a logger tagged with run_id and a fresh warn-once registry
func (l *Logger) ForRun(runID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().Str("run_id", runID).Logger(),
		once: haxmap.New[string, struct{}](),
	}
}

// WithComponent tags the logger with the emitting pipeline component
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithField("component", name)
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger(), once: l.once}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger(), once: l.once}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger(), once: l.once}
}
