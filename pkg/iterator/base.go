package iterator

import (
	"log/slog"

	"qpexec/pkg/dberror"
	"qpexec/pkg/logging"
	"qpexec/pkg/metrics"
	"qpexec/pkg/storage/page"
)

// BaseOperator carries the lifecycle flags, logger and metrics that every
// operator needs. Operators embed it and call its helpers from Open, Next and
// Close.
type BaseOperator struct {
	name    string
	log     *slog.Logger
	metrics *metrics.ExecMetrics
	opened  bool
	closed  bool
}

// NewBaseOperator builds the base for an operator called name (usually a
// strategy or OpType string). A nil parent logger uses the global one.
func NewBaseOperator(name string, parent *slog.Logger, m *metrics.ExecMetrics) BaseOperator {
	return BaseOperator{
		name:    name,
		log:     logging.WithOperator(parent, name),
		metrics: m,
	}
}

func (b *BaseOperator) Name() string {
	return b.name
}

func (b *BaseOperator) Logger() *slog.Logger {
	return b.log
}

func (b *BaseOperator) Metrics() *metrics.ExecMetrics {
	return b.metrics
}

// MarkOpened records a successful Open.
func (b *BaseOperator) MarkOpened() {
	b.opened = true
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (b *BaseOperator) IsOpen() bool {
	return b.opened && !b.closed
}

// CheckOpen is the guard at the top of Next.
func (b *BaseOperator) CheckOpen() error {
	if !b.IsOpen() {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeNotOpen, "operator is not open").
			In("Next", b.name)
	}
	return nil
}

// CheckCapacity rejects a page capacity below one tuple.
func (b *BaseOperator) CheckCapacity(capacity int) error {
	if capacity < 1 {
		return dberror.InvalidCapacity(b.name, capacity)
	}
	return nil
}

// BeginClose returns false if the operator was already closed; otherwise it
// marks it closed and returns true.
func (b *BaseOperator) BeginClose() bool {
	if b.closed {
		return false
	}
	b.closed = true
	return true
}

// Emit records output metrics for a page about to be returned from Next.
func (b *BaseOperator) Emit(batch *page.Batch) *page.Batch {
	if batch != nil {
		b.metrics.Emitted(b.name, batch.Size())
	}
	return batch
}

// LogCleanup logs a cleanup failure at WARN. Close never propagates these.
func (b *BaseOperator) LogCleanup(what string, err error) {
	if err != nil {
		logging.WithError(b.log, err).Warn("cleanup failed", "step", what)
	}
}
