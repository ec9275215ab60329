package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// thin wrapper around zap. Components get named loggers via Default().Named(..),
// output and verbosity are decided once by the command layer via ResetDefault.

type Level = zapcore.Level

const (
	DebugLevel = zap.DebugLevel
	InfoLevel  = zap.InfoLevel
	WarnLevel  = zap.WarnLevel
	ErrorLevel = zap.ErrorLevel
	FatalLevel = zap.FatalLevel
)

type Field = zap.Field

var (
	String     = zap.String
	Int        = zap.Int
	Int64      = zap.Int64
	Uint32     = zap.Uint32
	Float64    = zap.Float64
	Bool       = zap.Bool
	Duration   = zap.Duration
	Time       = zap.Time
	Any        = zap.Any
	ErrorField = zap.Error
)

type Option = zap.Option

var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
)

type Logger struct {
	l     *zap.Logger
	level Level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) Sugar() *zap.SugaredLogger { return l.l.Sugar() }

func (l *Logger) Sync() error { return l.l.Sync() }

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a json logger writing to out with everything below level
// discarded. filterRules uses zapfilter syntax and may be empty.
func New(out io.Writer, level Level, filterRules string, opts ...Option) *Logger {
	if out == nil {
		out = os.Stderr
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.AddSync(out),
		level,
	)
	return &Logger{l: zap.New(filtered(core, filterRules), opts...), level: level}
}

// DevLogger creates a console logger for interactive use.
func DevLogger(out io.Writer, level Level, filterRules string, opts ...Option) *Logger {
	if out == nil {
		out = os.Stderr
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(out),
		level,
	)
	return &Logger{l: zap.New(filtered(core, filterRules), opts...), level: level}
}

func filtered(core zapcore.Core, rules string) zapcore.Core {
	if rules == "" {
		return core
	}
	return zapfilter.NewFilteringCore(core, zapfilter.MustParseRules(rules))
}

var std = New(os.Stderr, InfoLevel, "")

func Default() *Logger { return std }

// ResetDefault replaces the package level default logger.
// Not safe for concurrent use; call it once during startup.
func ResetDefault(l *Logger) {
	std = l
}

func Debug(msg string, fields ...Field) { std.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.Fatal(msg, fields...) }
