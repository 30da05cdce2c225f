// Package extsort implements the external merge sort that Order, Distinct,
// GroupBy and SortMergeJoin build on.
package extsort

import (
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/storage/spill"
	"qpexec/pkg/tuple"
)

// MinBuffers is the smallest budget that still allows a two-way merge
// (two input pages and one output page).
const MinBuffers = 3

const runPrefix = "sort"

// Stats describes the work done by Open.
type Stats struct {
	// InitialRuns is the number of sorted runs produced from the input.
	InitialRuns int
	// MergePasses is the number of cascade levels needed to reach one run.
	MergePasses int
	// MaxOpenRuns is the largest number of runs read simultaneously.
	MaxOpenRuns int
	// PagesWritten counts pages written across every run, final run included.
	PagesWritten int
	// Tuples is the number of tuples sorted.
	Tuples int
}

// ExternalSort materializes its child into sorted runs of at most B pages,
// then merges them B-1 at a time until a single run remains. Next streams
// that run page by page.
type ExternalSort struct {
	iterator.BaseOperator
	qc         *registry.QueryContext
	child      iterator.PageIterator
	cmp        Comparator
	numBuffers int
	capacity   int

	final       *spill.Run
	reader      *spill.RunReader
	childClosed bool
	stats       Stats
}

// NewExternalSort sorts child on keys, descending when desc is set. The
// buffer budget is validated by Open.
func NewExternalSort(qc *registry.QueryContext, child iterator.PageIterator, keys []int, desc bool, numBuffers int) (*ExternalSort, error) {
	if child == nil {
		return nil, errors.New("child operator cannot be nil")
	}
	td := child.GetTupleDesc()
	if err := validateKeys(td, keys); err != nil {
		return nil, err
	}
	capacity, err := page.CapacityFor(qc.PageSize(), td)
	if err != nil {
		return nil, err
	}

	return &ExternalSort{
		BaseOperator: iterator.NewBaseOperator(iterator.OpExternalSort.String(), qc.Logger(), qc.Metrics()),
		qc:           qc,
		child:        child,
		cmp:          NewComparator(keys, desc),
		numBuffers:   numBuffers,
		capacity:     capacity,
	}, nil
}

func validateKeys(td *tuple.TupleDescription, keys []int) error {
	if len(keys) == 0 {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "sort needs at least one key")
	}
	for _, k := range keys {
		if k < 0 || k >= td.NumFields() {
			return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
				"sort key %d out of range for %d fields", k, td.NumFields())
		}
	}
	return nil
}

// WithCapacity overrides the page capacity derived from the page size.
func (s *ExternalSort) WithCapacity(capacity int) *ExternalSort {
	s.capacity = capacity
	return s
}

// Open sorts the whole input. On failure every run created so far is
// deleted before the error is returned.
func (s *ExternalSort) Open() error {
	if s.numBuffers < MinBuffers {
		return dberror.InsufficientBuffers(s.Name(), s.numBuffers, MinBuffers)
	}
	if err := s.CheckCapacity(s.capacity); err != nil {
		return err
	}
	if err := s.child.Open(); err != nil {
		s.closeChild()
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", s.Name())
	}

	runs, err := s.generateRuns()
	s.closeChild()
	if err != nil {
		s.removeRuns(runs)
		return dberror.Wrap(err, dberror.CodeTempStorage, "GenerateRuns", s.Name())
	}
	s.stats.InitialRuns = len(runs)

	final, err := s.mergeAll(runs)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeTempStorage, "Merge", s.Name())
	}
	s.final = final

	if final != nil {
		if s.reader, err = s.qc.TempStore().OpenRun(final, s.capacity); err != nil {
			s.removeRuns([]*spill.Run{final})
			s.final = nil
			return err
		}
	}

	s.Logger().Debug("sort complete",
		"tuples", s.stats.Tuples,
		"initial_runs", s.stats.InitialRuns,
		"merge_passes", s.stats.MergePasses,
		"pages_written", s.stats.PagesWritten,
		"spilled", humanize.Bytes(uint64(s.qc.TempStore().BytesWritten()))) // #nosec G115

	s.MarkOpened()
	return nil
}

// generateRuns fills B pages worth of tuples, sorts them in memory and
// writes them out as one run, until the child is exhausted.
func (s *ExternalSort) generateRuns() ([]*spill.Run, error) {
	var (
		runs   []*spill.Run
		limit  = s.numBuffers * s.capacity
		buf    = make([]*tuple.Tuple, 0, limit)
		stream = iterator.NewTupleStream(s.child)
	)

	for {
		t, err := stream.Next()
		if err != nil {
			return runs, dberror.Wrap(err, dberror.CodeChildReadFailed, "GenerateRuns", s.Name())
		}
		if t != nil {
			buf = append(buf, t)
			s.stats.Tuples++
		}
		if len(buf) == limit || (t == nil && len(buf) > 0) {
			run, err := s.writeSortedRun(buf)
			if err != nil {
				return runs, err
			}
			runs = append(runs, run)
			buf = buf[:0]
		}
		if t == nil {
			return runs, nil
		}
	}
}

func (s *ExternalSort) writeSortedRun(buf []*tuple.Tuple) (*spill.Run, error) {
	if err := s.cmp.SortTuples(buf); err != nil {
		return nil, errors.Wrap(err, "sorting run")
	}

	w, err := s.qc.TempStore().CreateRun(runPrefix, s.Name(), s.child.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	out := page.NewBatch(s.child.GetTupleDesc(), s.capacity)
	for _, t := range buf {
		if err := out.Add(t); err != nil {
			return nil, errors.CombineErrors(err, w.Abort())
		}
		if out.IsFull() {
			if err := w.WritePage(out); err != nil {
				return nil, errors.CombineErrors(err, w.Abort())
			}
			out = page.NewBatch(s.child.GetTupleDesc(), s.capacity)
		}
	}
	if err := w.WritePage(out); err != nil {
		return nil, errors.CombineErrors(err, w.Abort())
	}

	run, err := w.Close()
	if err != nil {
		return nil, errors.CombineErrors(err, w.Abort())
	}
	s.stats.PagesWritten += run.Pages
	return run, nil
}

// mergeAll runs cascade passes of (B-1)-way merges until one run is left.
// Each input run is deleted as soon as its group has been merged.
func (s *ExternalSort) mergeAll(runs []*spill.Run) (*spill.Run, error) {
	m := &merger{
		store:    s.qc.TempStore(),
		cmp:      s.cmp,
		td:       s.child.GetTupleDesc(),
		capacity: s.capacity,
		prefix:   runPrefix,
		operator: s.Name(),
	}
	fanIn := s.numBuffers - 1

	for len(runs) > 1 {
		next := make([]*spill.Run, 0, (len(runs)+fanIn-1)/fanIn)

		for start := 0; start < len(runs); start += fanIn {
			group := runs[start:min(start+fanIn, len(runs))]

			res, err := m.merge(group)
			if err != nil {
				s.removeRuns(runs[start:])
				s.removeRuns(next)
				return nil, err
			}
			s.removeRuns(group)

			next = append(next, res.run)
			s.stats.PagesWritten += res.run.Pages
			s.stats.MaxOpenRuns = max(s.stats.MaxOpenRuns, res.openReaders)
		}

		runs = next
		s.stats.MergePasses++
		s.Metrics().MergePass(s.Name())
		s.Logger().Debug("merge pass done", "pass", s.stats.MergePasses, "runs", len(runs))
	}

	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// Next returns the next page of the sorted output, or nil at the end.
func (s *ExternalSort) Next() (*page.Batch, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}
	if s.reader == nil {
		return nil, nil
	}
	b, err := s.reader.Next()
	if err != nil {
		return nil, err
	}
	return s.Emit(b), nil
}

// GetBatch returns page k of the sorted output by scanning from the first
// page, or nil if k is past the end. The sequential position of Next is not
// affected.
func (s *ExternalSort) GetBatch(k int) (*page.Batch, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}
	c, err := s.NewCursor()
	if err != nil {
		return nil, err
	}
	defer func() { s.LogCleanup("close cursor", c.Close()) }()
	return c.PageAt(k)
}

// NewCursor returns an independent random-access cursor over the sorted
// output. The caller must Close it before closing the sort.
func (s *ExternalSort) NewCursor() (*PageCursor, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}
	return &PageCursor{store: s.qc.TempStore(), run: s.final, capacity: s.capacity}, nil
}

// Stats returns the counters gathered by Open.
func (s *ExternalSort) Stats() Stats {
	return s.stats
}

// Capacity is the page capacity of the sorted output.
func (s *ExternalSort) Capacity() int {
	return s.capacity
}

// Close deletes the final run. Safe to call more than once and after a
// failed Open.
func (s *ExternalSort) Close() error {
	if !s.BeginClose() {
		return nil
	}
	if s.reader != nil {
		s.LogCleanup("close reader", s.reader.Close())
		s.reader = nil
	}
	if s.final != nil {
		s.LogCleanup("remove final run", s.qc.TempStore().Remove(s.final))
		s.final = nil
	}
	s.closeChild()
	return nil
}

func (s *ExternalSort) GetTupleDesc() *tuple.TupleDescription {
	return s.child.GetTupleDesc()
}

func (s *ExternalSort) closeChild() {
	if s.childClosed {
		return
	}
	s.childClosed = true
	s.LogCleanup("close child", s.child.Close())
}

func (s *ExternalSort) removeRuns(runs []*spill.Run) {
	for _, r := range runs {
		s.LogCleanup("remove run", s.qc.TempStore().Remove(r))
	}
}
