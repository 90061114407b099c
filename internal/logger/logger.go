// Package logger builds the JSON logrus logger used across the tool and
// the entries that carry per-file and per-job context.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"compress-tool-go/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field names shared by every log entry the tool writes.
const (
	FieldFile       = "file"
	FieldOperation  = "operation"
	FieldInput      = "input"
	FieldOutput     = "output"
	FieldJob        = "job_id"
	FieldOriginal   = "original_size"
	FieldCompressed = "compressed_size"
	FieldSaved      = "saved_percent"
)

// Options selects the level and sinks of a logger.
type Options struct {
	Level      string
	FilePath   string // rotated log file, empty for console only
	MaxSize    int    // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Console    bool
	ConsoleOut io.Writer // defaults to stderr
}

// FromConfig turns the logging section of the configuration into Options.
// verbose forces debug output to the console as well; quiet keeps errors
// only and wins over verbose.
func FromConfig(cfg config.LoggingConfig, verbose, quiet bool) Options {
	opts := Options{
		Level:      cfg.Level,
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		Console:    verbose,
	}
	if verbose {
		opts.Level = logrus.DebugLevel.String()
	}
	if quiet {
		opts.Level = logrus.ErrorLevel.String()
	}
	return opts
}

// New returns a logger writing JSON lines to the rotated file and, when
// asked or when no file is configured, to the console.
func New(opts Options) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})

	var sinks []io.Writer
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, err
		}
		sinks = append(sinks, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
	}
	if opts.Console || opts.FilePath == "" {
		console := opts.ConsoleOut
		if console == nil {
			console = os.Stderr
		}
		sinks = append(sinks, console)
	}
	log.SetOutput(io.MultiWriter(sinks...))

	return log, nil
}

// ForFile returns an entry for work on one media file.
func ForFile(log *logrus.Logger, file, operation string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldFile:      file,
		FieldOperation: operation,
	})
}

// ForBatch returns an entry for a folder job from input into output.
func ForBatch(log *logrus.Logger, input, output string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldOperation: "compress_tree",
		FieldInput:     input,
		FieldOutput:    output,
	})
}

// ForJob returns an entry for a background job started by the web server.
func ForJob(log *logrus.Logger, jobID, input string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldJob:   jobID,
		FieldInput: input,
	})
}

// WithSizes adds the before and after byte counts to entry, plus the share
// saved in percent when original is non-zero.
func WithSizes(entry *logrus.Entry, original, compressed int64) *logrus.Entry {
	fields := logrus.Fields{
		FieldOriginal:   original,
		FieldCompressed: compressed,
	}
	if original > 0 {
		fields[FieldSaved] = float64(original-compressed) / float64(original) * 100
	}
	return entry.WithFields(fields)
}
