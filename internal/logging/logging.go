// Package logging builds the loggers used across taskdeck.
//
// Loggers are std log.Loggers with bracketed prefixes. When a log file is
// configured, output goes through a size-rotated writer so a long-running
// serve process doesn't grow without bound.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/taskdeck/taskdeck/internal/config"
)

// New returns a logger with the given bracketed prefix, writing to stderr or,
// when cfg configures a log file, to a rotating file writer.
func New(cfg *config.Config, prefix string) *log.Logger {
	return log.New(writer(cfg), "["+prefix+"] ", log.LstdFlags)
}

// writer selects the log destination for the given configuration.
func writer(cfg *config.Config) io.Writer {
	if cfg == nil || cfg.Log.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
}
