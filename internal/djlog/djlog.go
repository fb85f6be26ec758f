// Package djlog builds the process-wide structured logger from djls's
// resolved configuration. The LSP transport owns stdout for the JSON-RPC
// stream, so every log line goes to stderr (or an explicit log file)
// instead, the same separation the original Rust server enforces between
// its tracing output and its LSP stdio pipe.
package djlog

import (
	"io"
	"os"

	charmlog "charm.land/log/v2"

	"github.com/djls-go/djls/internal/config"
)

// New builds a logger honoring cfg.Debug (verbose + caller info when set)
// and an optional log file path (empty means stderr). It returns a closer
// that must be called once logging is done, to flush and close the file.
func New(cfg *config.Config, logFile string) (*charmlog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	logger := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    cfg != nil && cfg.Debug,
		TimeFormat:      "15:04:05",
		Prefix:          "djls",
	})

	level := charmlog.InfoLevel
	if cfg != nil && cfg.Debug {
		level = charmlog.DebugLevel
	}
	logger.SetLevel(level)

	return logger, closer, nil
}

// Component returns a child logger tagged with a "component" field, used
// so log lines from the watcher, the inspector, and the LSP server are
// distinguishable without separate logger instances.
func Component(logger *charmlog.Logger, name string) *charmlog.Logger {
	return logger.With("component", name)
}
