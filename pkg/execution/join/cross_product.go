package join

import (
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
)

// CrossProductJoin pairs every left tuple with every right tuple, reading
// the left input one page at a time.
type CrossProductJoin struct {
	*nestedLoop
}

// NewCrossProductJoin still needs B >= 3 (one left, one right and one
// output page) even though it only ever holds a single left page.
func NewCrossProductJoin(qc *registry.QueryContext, left, right iterator.PageIterator, numBuffers int) (*CrossProductJoin, error) {
	blockPages := 1
	if numBuffers < MinBuffers {
		blockPages = 0
	}
	n, err := newNestedLoop(qc, CrossProduct.String(), nil, left, right, numBuffers, blockPages, "cp")
	if err != nil {
		return nil, err
	}
	return &CrossProductJoin{nestedLoop: n}, nil
}

// WithCapacity overrides the output page capacity.
func (j *CrossProductJoin) WithCapacity(capacity int) *CrossProductJoin {
	j.nestedLoop.WithCapacity(capacity)
	return j
}
