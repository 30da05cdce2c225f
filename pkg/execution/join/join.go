// Package join implements the paged join operators: block nested loop,
// cross product and sort-merge.
package join

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/tuple"
)

// Strategy is the closed set of join algorithms a plan can select.
type Strategy int

const (
	BlockNestedLoop Strategy = iota
	CrossProduct
	SortMerge
)

func (s Strategy) String() string {
	switch s {
	case BlockNestedLoop:
		return "BlockNestedLoopJoin"
	case CrossProduct:
		return "CrossProduct"
	case SortMerge:
		return "SortMergeJoin"
	default:
		return "UnknownJoin"
	}
}

// MinBuffers is the smallest budget every strategy accepts: one left page
// (block of B-2 >= 1), one right page and one output page.
const MinBuffers = 3

// Options configures a Join.
type Options struct {
	Strategy Strategy
	// Condition is required by BlockNestedLoop and SortMerge and must be nil
	// for CrossProduct.
	Condition *Condition
	// NumBuffers is the buffer budget B. Zero uses the query default.
	NumBuffers int
	// Descending sorts both SortMerge inputs in descending key order.
	Descending bool
}

// Join is the single join operator a plan builds; it delegates to the
// algorithm picked by Options.Strategy.
type Join struct {
	iterator.PageIterator
	strategy Strategy
}

// NewJoin validates opts against the children and builds the chosen algorithm.
func NewJoin(qc *registry.QueryContext, opts Options, left, right iterator.PageIterator) (*Join, error) {
	if left == nil || right == nil {
		return nil, errors.New("join children cannot be nil")
	}
	if opts.NumBuffers == 0 {
		opts.NumBuffers = qc.Config().NumBuffers
	}

	var (
		impl iterator.PageIterator
		err  error
	)
	switch opts.Strategy {
	case BlockNestedLoop:
		impl, err = NewBlockNestedLoopJoin(qc, opts.Condition, left, right, opts.NumBuffers)
	case CrossProduct:
		if opts.Condition != nil {
			return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "cross product takes no condition")
		}
		impl, err = NewCrossProductJoin(qc, left, right, opts.NumBuffers)
	case SortMerge:
		impl, err = NewSortMergeJoin(qc, opts.Condition, left, right, opts.NumBuffers, opts.Descending)
	default:
		return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "unknown join strategy %d", opts.Strategy)
	}
	if err != nil {
		return nil, err
	}
	return &Join{PageIterator: impl, strategy: opts.Strategy}, nil
}

func (j *Join) Strategy() Strategy {
	return j.strategy
}

func checkCondition(cond *Condition, left, right iterator.PageIterator) error {
	if cond == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "join condition cannot be nil")
	}
	return cond.Validate(left.GetTupleDesc(), right.GetTupleDesc())
}

func outputDesc(left, right iterator.PageIterator) *tuple.TupleDescription {
	return tuple.Combine(left.GetTupleDesc(), right.GetTupleDesc())
}
