package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/schema"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

// loadSchema loads a schema directory for commands that need a valid one.
// Missing directories are command errors; invalid schemas are failures.
func loadSchema(dir string) (*schema.Schema, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("schema directory not found: %s", dir))
	}
	s, err := schema.LoadDir(dir)
	if err != nil {
		var verrs *schema.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, WrapExitError(ExitFailure, "invalid schema", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return s, nil
}

// mismatchHandler maps a policy name to a host handler.
func mismatchHandler(policy string, logger *slog.Logger) (host.MismatchHandler, error) {
	switch policy {
	case config.MismatchThrow:
		return host.ThrowingMismatchHandler{}, nil
	case config.MismatchLog:
		return host.LoggingMismatchHandler{Logger: logger}, nil
	default:
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid mismatch policy %q: must be %q or %q", policy, config.MismatchThrow, config.MismatchLog))
	}
}

// newHostBridge builds a host bridge over a fresh widget list.
func newHostBridge(s *schema.Schema, mismatch host.MismatchHandler, logger *slog.Logger) (*host.Bridge, *widget.List) {
	root := widget.NewList()
	b := host.NewBridge(root, widget.NewFactory(s, widget.WithLogger(logger)),
		host.WithMismatchHandler(mismatch),
		host.WithLogger(logger),
	)
	return b, root
}

// commandLogger logs to w at debug level when verbose, warn otherwise.
func commandLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
