// Package logger is the process-wide logging facade. Everything is written to
// stderr so that stdout only carries listener replies.
package logger

import (
	"go.uber.org/zap"
)

var (
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger *zap.SugaredLogger
)

func init() {
	cfg := zap.Config{
		Level:            level,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

// SetLevel changes the minimum level, e.g. "debug", "info", "warn", "error".
func SetLevel(l string) error {
	return level.UnmarshalText([]byte(l))
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warningf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// Sync flushes buffered log entries. Call it before the process exits.
func Sync() error {
	return logger.Sync()
}
