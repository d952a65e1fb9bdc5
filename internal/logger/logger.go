// Package logger provides leveled structured logging.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. Tests may replace it with zap.NewNop().Sugar().
var Log = zap.NewNop().Sugar()

// Init initializes the default logger with the specified level and format.
// Format "json" writes structured records, "text" writes console lines with caller info.
func Init(level string, format string) {
	var l zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		l = zapcore.DebugLevel
	case "info":
		l = zapcore.InfoLevel
	case "warn":
		l = zapcore.WarnLevel
	case "error":
		l = zapcore.ErrorLevel
	default:
		l = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	opts := []zap.Option{zap.AddCallerSkip(1)}
	if strings.ToLower(format) == "text" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
		opts = append(opts, zap.AddCaller())
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(l))
	Log = zap.New(core, opts...).Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

func Debug(format string, args ...interface{}) {
	Log.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	Log.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	Log.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	Log.Fatalf(format, args...)
}
