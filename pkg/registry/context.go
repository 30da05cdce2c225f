package registry

import (
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"qpexec/pkg/config"
	"qpexec/pkg/logging"
	"qpexec/pkg/metrics"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/storage/spill"
)

// QueryContext holds everything the operators of one plan tree share: the
// configuration, the temp store with its run-name generator, a query-scoped
// logger and the metrics sink. Independent plan trees get independent
// contexts and may run concurrently.
type QueryContext struct {
	id      uuid.UUID
	cfg     *config.ExecConfig
	ids     *spill.IDGenerator
	store   *spill.TempStore
	logger  *slog.Logger
	metrics *metrics.ExecMetrics
}

// Option customizes NewQueryContext.
type Option func(*options)

type options struct {
	fs      afero.Fs
	metrics *metrics.ExecMetrics
	logger  *slog.Logger
}

// WithFs replaces the OS filesystem used for temp runs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithMetrics replaces the process-wide metrics.
func WithMetrics(m *metrics.ExecMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the parent logger; the query id is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewQueryContext validates cfg and creates the per-query temp directory
// <TempDir>/qpexec-<uuid>.
func NewQueryContext(cfg *config.ExecConfig, opts ...Option) (*QueryContext, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.metrics == nil {
		o.metrics = metrics.Default()
	}

	id := uuid.New()
	var logger *slog.Logger
	if o.logger != nil {
		logger = o.logger.With("query_id", id.String())
	} else {
		logger = logging.WithQuery(id.String())
	}

	ids := &spill.IDGenerator{}
	store, err := spill.NewTempStore(o.fs, filepath.Join(cfg.TempDir, "qpexec-"+id.String()), ids, spill.Options{
		Compression: cfg.CompressionCodec(),
		Metrics:     o.metrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &QueryContext{
		id:      id,
		cfg:     cfg,
		ids:     ids,
		store:   store,
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

func (ctx *QueryContext) ID() uuid.UUID {
	return ctx.id
}

func (ctx *QueryContext) Config() *config.ExecConfig {
	return ctx.cfg
}

func (ctx *QueryContext) TempStore() *spill.TempStore {
	return ctx.store
}

func (ctx *QueryContext) IDs() *spill.IDGenerator {
	return ctx.ids
}

func (ctx *QueryContext) Logger() *slog.Logger {
	return ctx.logger
}

func (ctx *QueryContext) Metrics() *metrics.ExecMetrics {
	return ctx.metrics
}

// PageSize is the configured page byte size.
func (ctx *QueryContext) PageSize() int {
	return ctx.cfg.PageSize
}

// Compression is the codec used for spilled pages.
func (ctx *QueryContext) Compression() page.Compression {
	return ctx.cfg.CompressionCodec()
}

// Close deletes whatever temp storage is left for this query. Operators
// clean up after themselves; this is the backstop for abandoned plans.
func (ctx *QueryContext) Close() error {
	if err := ctx.store.Close(); err != nil {
		logging.WithError(ctx.logger, err).Warn("query temp cleanup failed")
		return err
	}
	return nil
}
