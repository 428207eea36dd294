package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a LOG_LEVEL value to a pterm level.
// Supported values: trace, debug, info, warn, error, fatal (default: info)
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "info":
		return pterm.LogLevelInfo
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "fatal":
		return pterm.LogLevelFatal
	default:
		return pterm.LogLevelInfo
	}
}

// New builds the application logger. When logFile is set, output is also
// written to a size-rotated file.
func New(level, logFile string) (*pterm.Logger, io.Closer, error) {
	logger := pterm.DefaultLogger.WithLevel(ParseLevel(level))
	if logFile == "" {
		return logger, nopCloser{}, nil
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}
	return logger.WithWriter(io.MultiWriter(os.Stdout, fileWriter)), fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
