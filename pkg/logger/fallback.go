/* pkg/logger/fallback.go */

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFallbackLogger builds a console-only logger on stderr. stdout is kept
// free for metric exposition written by the collect command.
func NewFallbackLogger(level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitFallback installs a console-only logger at the LOG_LEVEL environment level.
func InitFallback() {
	SetLogger(NewFallbackLogger(ParseLogLevel(os.Getenv("LOG_LEVEL"))))
}

// InitializeWithFallback installs a logger that tees the console with a JSON
// log file at the first writable platform path. Without a writable path it
// degrades to console only.
func InitializeWithFallback(levelName string) {
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level := ParseLogLevel(levelName)

	path, err := FindWritableLogPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  No writable log path found. Logging to console only.")
		SetLogger(NewFallbackLogger(level))
		return
	}

	writer, err := GetLogFileWriter(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  Could not write to log file, logging to console only:", err)
		SetLogger(NewFallbackLogger(level))
		return
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(DefaultJSONEncoderConfig()), writer, level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SetLogger(l)
	l.Debug("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", path),
	)
}
