// Package logging sets up the process wide logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string

	// Optional file the log is copied to, rotated at MaxSizeMB.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger writing to w and, if set, the log file.
// The returned closer closes the log file.
func New(w io.Writer, options Options) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if options.Level != "" {
		var err error
		if level, err = log.ParseLevel(options.Level); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", options.Level, err)
		}
	}

	var closer io.Closer = nopCloser{}

	if options.File != "" {
		maxSize := options.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}

		file := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    maxSize,
			MaxBackups: options.MaxBackups,
		}

		w = io.MultiWriter(w, file)
		closer = file
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})

	return logger, closer, nil
}

// Setup installs the logger as the default one, writing to stderr.
func Setup(options Options) (io.Closer, error) {
	logger, closer, err := New(os.Stderr, options)
	if err != nil {
		return nil, err
	}

	log.SetDefault(logger)

	return closer, nil
}
