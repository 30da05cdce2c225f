package join

import (
	"qpexec/pkg/dberror"
	"qpexec/pkg/execution/extsort"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// SortMergeJoin sorts both inputs on the join keys with ExternalSort and
// merges them. The left output is read sequentially; the right output is
// addressed by page index so duplicate groups can be rescanned.
type SortMergeJoin struct {
	iterator.BaseOperator
	qc         *registry.QueryContext
	cond       *Condition
	numBuffers int
	desc       bool

	leftSort  *extsort.ExternalSort
	rightSort *extsort.ExternalSort
	cursor    *extsort.PageCursor
	state     *mergeState

	td       *tuple.TupleDescription
	capacity int
}

func NewSortMergeJoin(
	qc *registry.QueryContext,
	cond *Condition,
	left, right iterator.PageIterator,
	numBuffers int,
	desc bool,
) (*SortMergeJoin, error) {
	if err := checkCondition(cond, left, right); err != nil {
		return nil, err
	}

	leftSort, err := extsort.NewExternalSort(qc, left, cond.LeftKeys(), desc, numBuffers)
	if err != nil {
		return nil, err
	}
	rightSort, err := extsort.NewExternalSort(qc, right, cond.RightKeys(), desc, numBuffers)
	if err != nil {
		return nil, err
	}

	td := outputDesc(left, right)
	capacity, err := page.CapacityFor(qc.PageSize(), td)
	if err != nil {
		return nil, err
	}

	return &SortMergeJoin{
		BaseOperator: iterator.NewBaseOperator(SortMerge.String(), qc.Logger(), qc.Metrics()),
		qc:           qc,
		cond:         cond,
		numBuffers:   numBuffers,
		desc:         desc,
		leftSort:     leftSort,
		rightSort:    rightSort,
		td:           td,
		capacity:     capacity,
	}, nil
}

// WithCapacity overrides the output page capacity.
func (j *SortMergeJoin) WithCapacity(capacity int) *SortMergeJoin {
	j.capacity = capacity
	return j
}

// WithSortCapacity overrides the page capacity of both sorted inputs.
func (j *SortMergeJoin) WithSortCapacity(capacity int) *SortMergeJoin {
	j.leftSort.WithCapacity(capacity)
	j.rightSort.WithCapacity(capacity)
	return j
}

// Open sorts both inputs. If either sort fails, whatever was already sorted
// is released before the error is returned.
func (j *SortMergeJoin) Open() error {
	if j.numBuffers < MinBuffers {
		return dberror.InsufficientBuffers(j.Name(), j.numBuffers, MinBuffers)
	}
	if err := j.CheckCapacity(j.capacity); err != nil {
		return err
	}
	if err := j.leftSort.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", j.Name()).WithDetail("left sort")
	}
	if err := j.rightSort.Open(); err != nil {
		j.LogCleanup("close left sort", j.leftSort.Close())
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", j.Name()).WithDetail("right sort")
	}

	cursor, err := j.rightSort.NewCursor()
	if err != nil {
		return err
	}
	j.cursor = cursor
	j.state = newMergeState(j.cond, j.desc, j.leftSort, cursor)

	j.MarkOpened()
	return nil
}

func (j *SortMergeJoin) Next() (*page.Batch, error) {
	if err := j.CheckOpen(); err != nil {
		return nil, err
	}

	out := page.NewBatch(j.td, j.capacity)
	if err := j.state.fill(out, j.td); err != nil {
		return nil, err
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return j.Emit(out), nil
}

// Close releases the right cursor and both sorts.
func (j *SortMergeJoin) Close() error {
	if !j.BeginClose() {
		return nil
	}
	if j.cursor != nil {
		j.LogCleanup("close right cursor", j.cursor.Close())
		j.cursor = nil
	}
	j.LogCleanup("close left sort", j.leftSort.Close())
	j.LogCleanup("close right sort", j.rightSort.Close())
	j.state = nil
	return nil
}

func (j *SortMergeJoin) GetTupleDesc() *tuple.TupleDescription {
	return j.td
}
