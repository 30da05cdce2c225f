package logging

import (
	"io"
	"log/slog"
)

// WithQuery creates a logger tagged with a query id. Every QueryContext
// holds one of these.
//
// Example:
//
//	log := logging.WithQuery(qc.ID().String())
//	log.Info("query started")
func WithQuery(queryID string) *slog.Logger {
	return GetLogger().With("query_id", queryID)
}

// WithOperator derives an operator-scoped logger from parent.
//
// Example:
//
//	log := logging.WithOperator(qc.Logger(), "ExternalSort")
//	log.Debug("run generated", "pages", n)
func WithOperator(parent *slog.Logger, operator string) *slog.Logger {
	if parent == nil {
		parent = GetLogger()
	}
	return parent.With("operator", operator)
}

// WithRun derives a logger for a single spilled run.
func WithRun(parent *slog.Logger, runName string) *slog.Logger {
	if parent == nil {
		parent = GetLogger()
	}
	return parent.With("run", runName)
}

// WithComponent derives a logger for a subsystem such as the temp store.
func WithComponent(parent *slog.Logger, component string) *slog.Logger {
	if parent == nil {
		parent = GetLogger()
	}
	return parent.With("component", component)
}

// WithError creates a logger with error context.
func WithError(parent *slog.Logger, err error) *slog.Logger {
	if parent == nil {
		parent = GetLogger()
	}
	return parent.With("error", err.Error())
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
