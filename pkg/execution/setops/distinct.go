// Package setops holds the operators that reason about whole-tuple equality:
// Distinct and the sort-based UNION, INTERSECT and EXCEPT.
package setops

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/execution/extsort"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// Distinct removes duplicate tuples. Its input is sorted on every attribute,
// so duplicates are adjacent and only the previously kept tuple has to be
// remembered, including across page boundaries.
type Distinct struct {
	iterator.BaseOperator
	sort     *extsort.ExternalSort
	keys     []int
	capacity int

	stream *iterator.TupleStream
	last   *tuple.Tuple
}

func NewDistinct(qc *registry.QueryContext, child iterator.PageIterator, numBuffers int) (*Distinct, error) {
	if child == nil {
		return nil, errors.New("child operator cannot be nil")
	}
	keys := tuple.AllFields(child.GetTupleDesc().NumFields())
	s, err := extsort.NewExternalSort(qc, child, keys, false, numBuffers)
	if err != nil {
		return nil, err
	}

	return &Distinct{
		BaseOperator: iterator.NewBaseOperator(iterator.OpDistinct.String(), qc.Logger(), qc.Metrics()),
		sort:         s,
		keys:         keys,
		capacity:     s.Capacity(),
	}, nil
}

// WithCapacity sets the page capacity of the sort and of the output.
func (d *Distinct) WithCapacity(capacity int) *Distinct {
	d.sort.WithCapacity(capacity)
	d.capacity = capacity
	return d
}

func (d *Distinct) Open() error {
	if err := d.CheckCapacity(d.capacity); err != nil {
		return err
	}
	if err := d.sort.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", d.Name())
	}
	d.stream = iterator.NewTupleStream(d.sort)
	d.last = nil
	d.MarkOpened()
	return nil
}

func (d *Distinct) Next() (*page.Batch, error) {
	if err := d.CheckOpen(); err != nil {
		return nil, err
	}
	b, err := iterator.FillPage(d.stream, d.GetTupleDesc(), d.capacity, d.unseen, nil)
	if err != nil {
		return nil, errors.Wrap(err, "distinct")
	}
	return d.Emit(b), nil
}

// unseen keeps t unless it equals the last kept tuple.
func (d *Distinct) unseen(t *tuple.Tuple) (bool, error) {
	if d.last != nil {
		same, err := tuple.EqualOn(t, d.last, d.keys, d.keys)
		if err != nil || same {
			return false, err
		}
	}
	d.last = t
	return true, nil
}

func (d *Distinct) Close() error {
	if !d.BeginClose() {
		return nil
	}
	d.LogCleanup("close sort", d.sort.Close())
	d.last = nil
	return nil
}

func (d *Distinct) GetTupleDesc() *tuple.TupleDescription {
	return d.sort.GetTupleDesc()
}
