package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleTimeFormat = "15:04:05"

// Logging configures the log output.
type Logging struct {
	Level string `mapstructure:"level"`
	// Console writes human readable lines instead of JSON.
	Console bool `mapstructure:"console"`
	// File is an optional log file that is rotated when it exceeds MaxSize megabytes.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the logger described by the settings. The log is written to out and, if configured, into the
// log file. The returned closer closes the log file.
func NewLogger(settings Logging, out io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(settings.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	zerolog.DurationFieldUnit = time.Millisecond

	if out == nil {
		out = os.Stderr
	}
	if settings.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}

	var closer io.Closer = nopCloser{}
	if settings.File != "" {
		file := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSize,
			MaxAge:     settings.MaxAge,
			MaxBackups: settings.MaxBackups,
			Compress:   settings.Compress,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	logger := zerolog.New(out).With().Timestamp().Logger().Level(level)
	return logger, closer, nil
}

// ParseLevel parses a zerolog level name, case insensitive. The empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}
