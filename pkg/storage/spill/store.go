package spill

import (
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"qpexec/pkg/dberror"
	"qpexec/pkg/logging"
	"qpexec/pkg/metrics"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

const componentName = "TempStore"

// Run describes one sealed or in-progress temp run.
type Run struct {
	Name      string
	Operator  string
	TupleDesc *tuple.TupleDescription
	Pages     int
	Tuples    int
	Bytes     int64
	// PageCapacity is the largest capacity of any page written; readers
	// decode with at least this capacity.
	PageCapacity int

	path   string
	sealed bool
}

// TempStore creates, opens and deletes runs under a single directory.
type TempStore struct {
	fs          afero.Fs
	dir         string
	ids         *IDGenerator
	compression page.Compression
	metrics     *metrics.ExecMetrics
	log         *slog.Logger

	mu     sync.Mutex
	live   map[string]*Run
	closed bool

	openReaders atomic.Int64
	bytesTotal  atomic.Int64
}

// Options configures a TempStore. Zero values fall back to defaults.
type Options struct {
	Compression page.Compression
	Metrics     *metrics.ExecMetrics
	Logger      *slog.Logger
}

// NewTempStore creates dir on fs and returns a store rooted there.
func NewTempStore(fs afero.Fs, dir string, ids *IDGenerator, opts Options) (*TempStore, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, dberror.Wrap(err, dberror.CodeTempStorage, "NewTempStore", componentName).
			WithDetail("creating %s", dir)
	}
	if ids == nil {
		ids = &IDGenerator{}
	}
	if opts.Compression == "" {
		opts.Compression = page.CompressionNone
	}

	return &TempStore{
		fs:          fs,
		dir:         dir,
		ids:         ids,
		compression: opts.Compression,
		metrics:     opts.Metrics,
		log:         logging.WithComponent(opts.Logger, componentName),
		live:        make(map[string]*Run),
	}, nil
}

func (s *TempStore) Dir() string {
	return s.dir
}

// CreateRun opens a new run for writing. prefix becomes part of the run
// name; operator labels metrics and logs.
func (s *TempStore) CreateRun(prefix, operator string, td *tuple.TupleDescription) (*RunWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, dberror.New(dberror.ErrCategorySystem, dberror.CodeTempStorage, "temp store is closed").
			In("CreateRun", componentName)
	}

	name := s.ids.Name(prefix)
	run := &Run{
		Name:      name,
		Operator:  operator,
		TupleDesc: td,
		path:      filepath.Join(s.dir, name+".run"),
	}

	f, err := s.fs.OpenFile(run.path, osCreateExclusive, 0o600)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeTempStorage, "CreateRun", componentName).
			WithDetail("run %s", name)
	}

	s.live[name] = run
	s.metrics.RunCreated(operator)
	logging.WithRun(s.log, name).Debug("run created", "operator", operator)

	return newRunWriter(s, run, f), nil
}

// OpenRun opens a sealed run for a sequential scan with the given page capacity.
func (s *TempStore) OpenRun(run *Run, capacity int) (*RunReader, error) {
	s.mu.Lock()
	_, ok := s.live[run.Name]
	s.mu.Unlock()

	if !ok {
		return nil, dberror.Newf(dberror.ErrCategorySystem, dberror.CodeTempStorage,
			"run %s does not exist", run.Name).In("OpenRun", componentName)
	}
	if !run.sealed {
		return nil, errors.AssertionFailedf("run %s opened before its writer was closed", run.Name)
	}

	f, err := s.fs.Open(run.path)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeTempStorage, "OpenRun", componentName).
			WithDetail("run %s", run.Name)
	}

	s.openReaders.Add(1)
	return newRunReader(s, run, f, capacity), nil
}

// Remove deletes a run's storage. Removing an unknown run is a no-op.
func (s *TempStore) Remove(run *Run) error {
	if run == nil {
		return nil
	}

	s.mu.Lock()
	_, ok := s.live[run.Name]
	delete(s.live, run.Name)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	s.metrics.RunRemoved(run.Operator)
	if err := s.fs.Remove(run.path); err != nil {
		return dberror.Wrap(err, dberror.CodeTempStorage, "Remove", componentName).
			WithDetail("run %s", run.Name)
	}
	logging.WithRun(s.log, run.Name).Debug("run removed",
		"pages", run.Pages, "size", humanize.Bytes(uint64(run.Bytes))) // #nosec G115
	return nil
}

// LiveRuns returns how many runs currently exist on disk.
func (s *TempStore) LiveRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// OpenReaders returns how many RunReaders are open right now.
func (s *TempStore) OpenReaders() int {
	return int(s.openReaders.Load())
}

// BytesWritten is the total frame bytes written through this store.
func (s *TempStore) BytesWritten() int64 {
	return s.bytesTotal.Load()
}

// Close removes every remaining run and the store directory. Failures are
// combined and returned; the store is unusable afterwards either way.
func (s *TempStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	leftover := make([]*Run, 0, len(s.live))
	for _, r := range s.live {
		leftover = append(leftover, r)
	}
	s.mu.Unlock()

	var err error
	for _, r := range leftover {
		err = errors.CombineErrors(err, s.Remove(r))
	}
	if rmErr := s.fs.RemoveAll(s.dir); rmErr != nil {
		err = errors.CombineErrors(err, errors.Wrapf(rmErr, "removing %s", s.dir))
	}

	s.log.Debug("temp store closed",
		"leftover_runs", len(leftover),
		"spilled", humanize.Bytes(uint64(s.bytesTotal.Load()))) // #nosec G115
	return err
}
