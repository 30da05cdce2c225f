// Package query holds the sort-dependent operators that sit above the joins
// in a plan: Order, GroupBy and Limit.
package query

import (
	"qpexec/pkg/dberror"
	"qpexec/pkg/execution/extsort"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// Order implements ORDER BY. It is a thin shell over ExternalSort whose
// pages it passes through unchanged.
type Order struct {
	iterator.BaseOperator
	sort *extsort.ExternalSort
}

func NewOrder(qc *registry.QueryContext, child iterator.PageIterator, keys []int, desc bool, numBuffers int) (*Order, error) {
	s, err := extsort.NewExternalSort(qc, child, keys, desc, numBuffers)
	if err != nil {
		return nil, err
	}
	return &Order{
		BaseOperator: iterator.NewBaseOperator(iterator.OpOrder.String(), qc.Logger(), qc.Metrics()),
		sort:         s,
	}, nil
}

// WithCapacity sets the page capacity of the sorted output.
func (o *Order) WithCapacity(capacity int) *Order {
	o.sort.WithCapacity(capacity)
	return o
}

func (o *Order) Open() error {
	if err := o.sort.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", o.Name())
	}
	o.MarkOpened()
	return nil
}

func (o *Order) Next() (*page.Batch, error) {
	if err := o.CheckOpen(); err != nil {
		return nil, err
	}
	b, err := o.sort.Next()
	if err != nil {
		return nil, err
	}
	return o.Emit(b), nil
}

// GetBatch returns page k of the ordered output without moving Next.
func (o *Order) GetBatch(k int) (*page.Batch, error) {
	if err := o.CheckOpen(); err != nil {
		return nil, err
	}
	return o.sort.GetBatch(k)
}

// Stats reports the work done by the underlying sort.
func (o *Order) Stats() extsort.Stats {
	return o.sort.Stats()
}

func (o *Order) Close() error {
	if !o.BeginClose() {
		return nil
	}
	o.LogCleanup("close sort", o.sort.Close())
	return nil
}

func (o *Order) GetTupleDesc() *tuple.TupleDescription {
	return o.sort.GetTupleDesc()
}
