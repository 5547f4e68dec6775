// Package common holds project-wide constants and logger setup shared by
// all binaries.
package common

import (
	"log/slog"
	"os"
)

// PackageName is used as the service identifier for metrics and logs.
const PackageName = "scriptstore"

// Version is the service version, overridable at build time via -ldflags.
var Version = "dev"

// LoggingOpts configures the process-wide structured logger.
type LoggingOpts struct {
	// Debug enables debug-level messages.
	Debug bool

	// JSON switches the handler from text to JSON output.
	JSON bool

	// Service is added as a "service" attribute to every record.
	Service string

	// Version is added as a "version" attribute to every record.
	Version string
}

// SetupLogger creates a slog.Logger according to the given options.
// It never fails; with nil options it returns a plain text logger at
// info level.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	if opts == nil {
		opts = &LoggingOpts{}
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		log = log.With(slog.String("version", opts.Version))
	}
	return log
}
