// Package logger builds the zap loggers used across the collector.
package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat selects the encoder
type LogFormat string

const (
	// FormatConsole is the human readable format
	FormatConsole LogFormat = "CONSOLE"
	// FormatJSON is one JSON object per line
	FormatJSON LogFormat = "JSON"
)

// Component names
const (
	ComponentMain       = "main"
	ComponentSupervisor = "supervisor"
	ComponentPersister  = "persister"
	ComponentRegistry   = "flows"
	ComponentMetrics    = "metrics"
)

// ParseLevel converts a level name to a zap level. Unknown names give INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseFormat converts a format name, falling back to console
func ParseFormat(format string) LogFormat {
	if LogFormat(strings.ToUpper(format)) == FormatJSON {
		return FormatJSON
	}
	return FormatConsole
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

func encoderConfig(format LogFormat) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == FormatConsole {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = timeEncoder
		cfg.ConsoleSeparator = " | "
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg
}

// New creates a logger writing to stdout
func New(level string, format LogFormat) *zap.Logger {
	return NewWithSink(level, format, zapcore.AddSync(os.Stdout))
}

// NewWithSink creates a logger writing to ws
func NewWithSink(level string, format LogFormat, ws zapcore.WriteSyncer) *zap.Logger {
	var encoder zapcore.Encoder
	if format == FormatConsole {
		encoder = zapcore.NewConsoleEncoder(encoderConfig(format))
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig(format))
	}
	core := zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(ParseLevel(level)))
	return zap.New(core, zap.AddCaller())
}

// For returns a sugared logger named after a component
func For(base *zap.Logger, component string) *zap.SugaredLogger {
	return base.Sugar().Named(component)
}
