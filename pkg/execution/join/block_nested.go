package join

import (
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
)

// BlockNestedLoopJoin joins blocks of B-2 left pages against a materialized
// right input, emitting left||right for every pair equal on the condition.
type BlockNestedLoopJoin struct {
	*nestedLoop
}

func NewBlockNestedLoopJoin(
	qc *registry.QueryContext,
	cond *Condition,
	left, right iterator.PageIterator,
	numBuffers int,
) (*BlockNestedLoopJoin, error) {
	if err := checkCondition(cond, left, right); err != nil {
		return nil, err
	}
	n, err := newNestedLoop(qc, BlockNestedLoop.String(), cond, left, right, numBuffers, numBuffers-2, "bnlj")
	if err != nil {
		return nil, err
	}
	return &BlockNestedLoopJoin{nestedLoop: n}, nil
}

// WithCapacity overrides the output page capacity.
func (j *BlockNestedLoopJoin) WithCapacity(capacity int) *BlockNestedLoopJoin {
	j.nestedLoop.WithCapacity(capacity)
	return j
}
