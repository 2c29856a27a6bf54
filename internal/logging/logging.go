// Package logging builds the loggers handed to every component.
//
// Components accept a *log.Logger and fall back to a stderr default with a
// bracketed prefix when given nil. When a log file is configured the same
// lines also go to a rotating file so long-running daemons stay bounded on
// disk.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hopitalsage/pharmsync/internal/config"
)

// New returns a logger writing to stderr, and additionally to a rotating
// file when cfg.File is set.
func New(cfg config.LogConfig, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}
