package execution

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// Filter keeps the tuples of its child that satisfy a predicate and repacks
// them into full pages.
type Filter struct {
	iterator.BaseOperator
	predicate func(*tuple.Tuple) (bool, error)
	child     iterator.PageIterator
	capacity  int
	stream    *iterator.TupleStream
}

// NewFilter filters with a single field-vs-constant predicate.
func NewFilter(qc *registry.QueryContext, predicate *Predicate, child iterator.PageIterator) (*Filter, error) {
	if predicate == nil {
		return nil, errors.New("predicate cannot be nil")
	}
	return NewFilterFunc(qc, predicate.Filter, child)
}

// NewFilterFunc filters with an arbitrary tuple predicate.
func NewFilterFunc(qc *registry.QueryContext, predicate func(*tuple.Tuple) (bool, error), child iterator.PageIterator) (*Filter, error) {
	if predicate == nil {
		return nil, errors.New("predicate cannot be nil")
	}
	if child == nil {
		return nil, errors.New("child operator cannot be nil")
	}
	capacity, err := page.CapacityFor(qc.PageSize(), child.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	return &Filter{
		BaseOperator: iterator.NewBaseOperator(iterator.OpSelect.String(), qc.Logger(), qc.Metrics()),
		predicate:    predicate,
		child:        child,
		capacity:     capacity,
	}, nil
}

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", f.Name())
	}
	f.stream = iterator.NewTupleStream(f.child)
	f.MarkOpened()
	return nil
}

func (f *Filter) Next() (*page.Batch, error) {
	if err := f.CheckOpen(); err != nil {
		return nil, err
	}
	b, err := iterator.FillPage(f.stream, f.GetTupleDesc(), f.capacity, f.predicate, nil)
	if err != nil {
		return nil, errors.Wrap(err, "filter")
	}
	return f.Emit(b), nil
}

func (f *Filter) Close() error {
	if !f.BeginClose() {
		return nil
	}
	f.LogCleanup("close child", f.child.Close())
	return nil
}

// GetTupleDesc returns the schema; filtering doesn't change it.
func (f *Filter) GetTupleDesc() *tuple.TupleDescription {
	return f.child.GetTupleDesc()
}
