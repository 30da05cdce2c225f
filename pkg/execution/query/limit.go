package query

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// Limit implements LIMIT and OFFSET: it skips offset tuples, then returns at
// most limit tuples, repacked into full pages. It stops pulling from its
// child as soon as the limit is reached.
type Limit struct {
	iterator.BaseOperator
	child    iterator.PageIterator
	limit    int
	offset   int
	capacity int

	stream  *iterator.TupleStream
	skipped int
	count   int
}

func NewLimit(qc *registry.QueryContext, child iterator.PageIterator, limit, offset int) (*Limit, error) {
	if child == nil {
		return nil, errors.New("child operator cannot be nil")
	}
	if limit < 0 || offset < 0 {
		return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
			"limit and offset must be non-negative, got %d and %d", limit, offset)
	}
	capacity, err := page.CapacityFor(qc.PageSize(), child.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	return &Limit{
		BaseOperator: iterator.NewBaseOperator(iterator.OpLimit.String(), qc.Logger(), qc.Metrics()),
		child:        child,
		limit:        limit,
		offset:       offset,
		capacity:     capacity,
	}, nil
}

// WithCapacity overrides the output page capacity.
func (l *Limit) WithCapacity(capacity int) *Limit {
	l.capacity = capacity
	return l
}

func (l *Limit) Open() error {
	if err := l.CheckCapacity(l.capacity); err != nil {
		return err
	}
	if err := l.child.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", l.Name())
	}
	l.stream = iterator.NewTupleStream(l.child)
	l.skipped, l.count = 0, 0
	l.MarkOpened()
	return nil
}

func (l *Limit) Next() (*page.Batch, error) {
	if err := l.CheckOpen(); err != nil {
		return nil, err
	}

	out := page.NewBatch(l.GetTupleDesc(), l.capacity)
	for !out.IsFull() && l.count < l.limit {
		t, err := l.stream.Next()
		if err != nil {
			return nil, errors.Wrap(err, "limit")
		}
		if t == nil {
			break
		}
		if l.skipped < l.offset {
			l.skipped++
			continue
		}
		if err := out.Add(t); err != nil {
			return nil, err
		}
		l.count++
	}

	if out.IsEmpty() {
		return nil, nil
	}
	return l.Emit(out), nil
}

func (l *Limit) Close() error {
	if !l.BeginClose() {
		return nil
	}
	l.LogCleanup("close child", l.child.Close())
	return nil
}

func (l *Limit) GetTupleDesc() *tuple.TupleDescription {
	return l.child.GetTupleDesc()
}
