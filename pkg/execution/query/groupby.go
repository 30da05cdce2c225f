package query

import (
	"qpexec/pkg/dberror"
	"qpexec/pkg/execution/extsort"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// GroupBy sorts its input on the grouping fields so that each group is a
// contiguous stretch of rows, and passes the rows through. It computes no
// aggregates; a consumer that needs them reads one group at a time.
type GroupBy struct {
	iterator.BaseOperator
	sort *extsort.ExternalSort
	keys []int
}

func NewGroupBy(qc *registry.QueryContext, child iterator.PageIterator, groupKeys []int, numBuffers int) (*GroupBy, error) {
	s, err := extsort.NewExternalSort(qc, child, groupKeys, false, numBuffers)
	if err != nil {
		return nil, err
	}
	return &GroupBy{
		BaseOperator: iterator.NewBaseOperator(iterator.OpGroupBy.String(), qc.Logger(), qc.Metrics()),
		sort:         s,
		keys:         append([]int(nil), groupKeys...),
	}, nil
}

// WithCapacity sets the page capacity of the grouped output.
func (g *GroupBy) WithCapacity(capacity int) *GroupBy {
	g.sort.WithCapacity(capacity)
	return g
}

// GroupKeys returns the grouping field indices.
func (g *GroupBy) GroupKeys() []int {
	return g.keys
}

// SameGroup reports whether two output rows belong to the same group.
func (g *GroupBy) SameGroup(a, b *tuple.Tuple) (bool, error) {
	return tuple.EqualOn(a, b, g.keys, g.keys)
}

func (g *GroupBy) Open() error {
	if err := g.sort.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", g.Name())
	}
	g.MarkOpened()
	return nil
}

func (g *GroupBy) Next() (*page.Batch, error) {
	if err := g.CheckOpen(); err != nil {
		return nil, err
	}
	b, err := g.sort.Next()
	if err != nil {
		return nil, err
	}
	return g.Emit(b), nil
}

func (g *GroupBy) Close() error {
	if !g.BeginClose() {
		return nil
	}
	g.LogCleanup("close sort", g.sort.Close())
	return nil
}

func (g *GroupBy) GetTupleDesc() *tuple.TupleDescription {
	return g.sort.GetTupleDesc()
}
