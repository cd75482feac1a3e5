// Package log provides the governor's process-wide structured logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It is replaced once at startup by
// CreateLogger and read by every component from then on.
var Logger = CreateLogger(zap.InfoLevel, "")

// ParseLogLevel maps a config/CLI level string onto a zap level.
func ParseLogLevel(lvl string) (zapcore.Level, error) {
	if lvl == "" {
		return zap.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return zap.InfoLevel, fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	return l, nil
}

// CreateLogger builds a SugaredLogger writing structured entries to stderr,
// and additionally to logFile when set. Timestamps are ISO8601 wall-clock
// times, not monotonic clock readings. Log transport beyond
// this (rotation, shipping) is external-collaborator territory; the governor
// only ever writes lines.
func CreateLogger(level zapcore.Level, logFile string) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		),
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encCfg),
				zapcore.Lock(f),
				level,
			))
		}
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()).Sugar()
}
