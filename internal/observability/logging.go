// Package observability wires structured logging and tracing shared by
// every pipeline component. Logging uses zerolog, as the teacher repo's
// own internal/observability package does; tracing uses the OpenTelemetry
// SDK with a stdout exporter by default, matching the MCP-stdio transport's
// constraint that diagnostics never touch stdout/stdin (the trace/log
// writer is always stderr or a file, never os.Stdout).
package observability

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// InitLogger configures the global zerolog logger. Diagnostics always go to
// stderr (never stdout, which in MCP mode carries JSON-RPC responses); when
// logPath is set, output is duplicated to that file as well, rotated at
// 10MB keeping 5 backups by RotatingFile (see rotate.go).
func InitLogger(logPath string, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if logPath != "" {
		if f, err := NewRotatingFile(logPath, 10<<20, 5); err == nil {
			w = io.MultiWriter(os.Stderr, f)
		} else {
			fmt.Fprintf(os.Stderr, "observability: failed to open log file %q: %v\n", logPath, err)
		}
	}

	logger := zerolog.New(w).With().Timestamp().Caller().Logger()

	lvl := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil {
		lvl = l
	}
	logger = logger.Level(lvl)

	// Redirect the standard library logger (used by a couple of vendored
	// dependencies) so every log line is captured in one stream.
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)

	return logger
}
