// Package scanner provides leaf operators that feed tuples into a plan.
package scanner

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// RelationScan produces an in-memory relation as pages of the configured
// size. It stands in for a heap file scan.
type RelationScan struct {
	iterator.BaseOperator
	td       *tuple.TupleDescription
	tuples   []*tuple.Tuple
	capacity int
	pos      int
	opens    int
}

// NewRelationScan checks every tuple against td and sizes pages from the
// query's page size.
func NewRelationScan(qc *registry.QueryContext, td *tuple.TupleDescription, tuples []*tuple.Tuple) (*RelationScan, error) {
	for i, t := range tuples {
		if !t.TupleDesc.Equals(td) {
			return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
				"tuple %d has schema %s, expected %s", i, t.TupleDesc, td)
		}
	}
	capacity, err := page.CapacityFor(qc.PageSize(), td)
	if err != nil {
		return nil, errors.Wrap(err, "sizing scan pages")
	}

	return &RelationScan{
		BaseOperator: iterator.NewBaseOperator(iterator.OpScan.String(), qc.Logger(), qc.Metrics()),
		td:           td,
		tuples:       tuples,
		capacity:     capacity,
	}, nil
}

// WithCapacity overrides the page capacity; tests use it to force many
// small pages.
func (s *RelationScan) WithCapacity(capacity int) *RelationScan {
	s.capacity = capacity
	return s
}

// Open rewinds the scan to the first tuple.
func (s *RelationScan) Open() error {
	if err := s.CheckCapacity(s.capacity); err != nil {
		return err
	}
	s.pos = 0
	s.opens++
	s.MarkOpened()
	return nil
}

func (s *RelationScan) Next() (*page.Batch, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.tuples) {
		return nil, nil
	}

	end := min(s.pos+s.capacity, len(s.tuples))
	b := page.NewBatch(s.td, s.capacity)
	for _, t := range s.tuples[s.pos:end] {
		if err := b.Add(t); err != nil {
			return nil, err
		}
	}
	s.pos = end
	return s.Emit(b), nil
}

func (s *RelationScan) Close() error {
	s.BeginClose()
	return nil
}

func (s *RelationScan) GetTupleDesc() *tuple.TupleDescription {
	return s.td
}

// Opens reports how many times Open was called.
func (s *RelationScan) Opens() int {
	return s.opens
}
