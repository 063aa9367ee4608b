// Package logging builds the zerolog loggers used across the commands:
// human-readable console output, optionally teed into a per-session JSON log
// file under logs/.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a config log level to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewConsole returns a console logger writing to stderr.
func NewConsole(level string) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// NewSession returns a console logger that also appends JSON lines to
// logs/<symbol>_<interval>_<date>.log. The returned closer flushes the file;
// callers defer it at shutdown.
func NewSession(level, symbol, interval string) (zerolog.Logger, func() error, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.log", symbol, interval, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	writer := io.MultiWriter(console, file)
	log := zerolog.New(writer).Level(ParseLevel(level)).With().
		Timestamp().
		Str("symbol", symbol).
		Str("interval", interval).
		Logger()
	return log, file.Close, nil
}
