// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File, when set, receives JSON logs with size-based rotation.
	File string
	// Console defaults to stderr.
	Console io.Writer
}

// Setup installs the global logger and returns a closer for the log file.
func Setup(o Options) io.Closer {
	zerolog.SetGlobalLevel(ParseLevel(o.Level))

	console := o.Console
	if console == nil {
		console = os.Stderr
	}
	var w io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}

	var closer io.Closer = nopCloser{}
	if o.File != "" {
		rot := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     30,
		}
		w = zerolog.MultiLevelWriter(w, rot)
		closer = rot
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
