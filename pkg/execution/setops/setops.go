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

// SetOperationType selects UNION, INTERSECT or EXCEPT.
type SetOperationType int

const (
	SetUnion SetOperationType = iota
	SetIntersect
	SetExcept
)

func (t SetOperationType) String() string {
	switch t {
	case SetUnion:
		return "Union"
	case SetIntersect:
		return "Intersect"
	case SetExcept:
		return "Except"
	default:
		return "UnknownSetOp"
	}
}

// outputCount is how many copies of a value present l times on the left and
// r times on the right the operation emits. Without ALL every value is
// emitted at most once, and EXCEPT drops any value the right side holds.
func (t SetOperationType) outputCount(l, r int, preserveAll bool) int {
	if !preserveAll {
		switch t {
		case SetUnion:
			return min(l+r, 1)
		case SetIntersect:
			return min(l, r, 1)
		case SetExcept:
			if l > 0 && r == 0 {
				return 1
			}
		}
		return 0
	}
	switch t {
	case SetUnion:
		return l + r
	case SetIntersect:
		return min(l, r)
	case SetExcept:
		return max(l-r, 0)
	}
	return 0
}

// SetOp sorts both inputs on every attribute and merges them one value
// group at a time, so memory use is a single pending tuple regardless of
// input size.
type SetOp struct {
	iterator.BaseOperator
	opType      SetOperationType
	preserveAll bool
	left, right *extsort.ExternalSort
	keys        []int
	capacity    int

	ls, rs    *peekStream
	pending   *tuple.Tuple
	remaining int
}

func NewSetOp(
	qc *registry.QueryContext,
	opType SetOperationType,
	left, right iterator.PageIterator,
	preserveAll bool,
	numBuffers int,
) (*SetOp, error) {
	if left == nil || right == nil {
		return nil, errors.New("set operation children cannot be nil")
	}
	if err := validateSchemaCompatibility(left.GetTupleDesc(), right.GetTupleDesc()); err != nil {
		return nil, err
	}

	keys := tuple.AllFields(left.GetTupleDesc().NumFields())
	ls, err := extsort.NewExternalSort(qc, left, keys, false, numBuffers)
	if err != nil {
		return nil, err
	}
	rs, err := extsort.NewExternalSort(qc, right, keys, false, numBuffers)
	if err != nil {
		return nil, err
	}

	return &SetOp{
		BaseOperator: iterator.NewBaseOperator(opType.String(), qc.Logger(), qc.Metrics()),
		opType:       opType,
		preserveAll:  preserveAll,
		left:         ls,
		right:        rs,
		keys:         keys,
		capacity:     ls.Capacity(),
	}, nil
}

func NewUnion(qc *registry.QueryContext, left, right iterator.PageIterator, unionAll bool, numBuffers int) (*SetOp, error) {
	return NewSetOp(qc, SetUnion, left, right, unionAll, numBuffers)
}

func NewIntersect(qc *registry.QueryContext, left, right iterator.PageIterator, intersectAll bool, numBuffers int) (*SetOp, error) {
	return NewSetOp(qc, SetIntersect, left, right, intersectAll, numBuffers)
}

func NewExcept(qc *registry.QueryContext, left, right iterator.PageIterator, exceptAll bool, numBuffers int) (*SetOp, error) {
	return NewSetOp(qc, SetExcept, left, right, exceptAll, numBuffers)
}

func validateSchemaCompatibility(l, r *tuple.TupleDescription) error {
	if l.NumFields() != r.NumFields() {
		return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
			"schema mismatch: left has %d fields, right has %d fields", l.NumFields(), r.NumFields())
	}
	for i := 0; i < l.NumFields(); i++ {
		lt, _ := l.TypeAtIndex(i)
		rt, _ := r.TypeAtIndex(i)
		if lt != rt {
			return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
				"schema mismatch at field %d: left type %s, right type %s", i, lt, rt)
		}
	}
	return nil
}

// WithCapacity sets the page capacity of both sorts and of the output.
func (s *SetOp) WithCapacity(capacity int) *SetOp {
	s.left.WithCapacity(capacity)
	s.right.WithCapacity(capacity)
	s.capacity = capacity
	return s
}

func (s *SetOp) Open() error {
	if err := s.CheckCapacity(s.capacity); err != nil {
		return err
	}
	if err := s.left.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", s.Name()).WithDetail("left sort")
	}
	if err := s.right.Open(); err != nil {
		s.LogCleanup("close left sort", s.left.Close())
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", s.Name()).WithDetail("right sort")
	}
	s.ls = newPeekStream(s.left)
	s.rs = newPeekStream(s.right)
	s.pending, s.remaining = nil, 0
	s.MarkOpened()
	return nil
}

func (s *SetOp) Next() (*page.Batch, error) {
	if err := s.CheckOpen(); err != nil {
		return nil, err
	}

	out := page.NewBatch(s.GetTupleDesc(), s.capacity)
	for !out.IsFull() {
		if s.remaining == 0 {
			ok, err := s.nextGroup()
			if err != nil {
				return nil, errors.Wrapf(err, "%s", s.Name())
			}
			if !ok {
				break
			}
			continue
		}
		if err := out.Add(s.pending); err != nil {
			return nil, err
		}
		s.remaining--
	}

	if out.IsEmpty() {
		return nil, nil
	}
	return s.Emit(out), nil
}

// nextGroup consumes the smallest remaining value from both sides and sets
// how many copies of it to emit. It returns false when both sides are done.
func (s *SetOp) nextGroup() (bool, error) {
	lt, err := s.ls.peek()
	if err != nil {
		return false, err
	}
	rt, err := s.rs.peek()
	if err != nil {
		return false, err
	}

	var v *tuple.Tuple
	switch {
	case lt == nil && rt == nil:
		return false, nil
	case lt == nil:
		v = rt
	case rt == nil:
		v = lt
	default:
		c, err := tuple.CompareOn(lt, rt, s.keys, s.keys)
		if err != nil {
			return false, err
		}
		v = lt
		if c > 0 {
			v = rt
		}
	}

	l, err := s.ls.skipEqual(v, s.keys)
	if err != nil {
		return false, err
	}
	r, err := s.rs.skipEqual(v, s.keys)
	if err != nil {
		return false, err
	}

	s.pending, s.remaining = v, s.opType.outputCount(l, r, s.preserveAll)
	return true, nil
}

// Close releases both sorts.
func (s *SetOp) Close() error {
	if !s.BeginClose() {
		return nil
	}
	s.LogCleanup("close left sort", s.left.Close())
	s.LogCleanup("close right sort", s.right.Close())
	s.pending = nil
	return nil
}

// GetTupleDesc returns the left schema; both sides were checked to match.
func (s *SetOp) GetTupleDesc() *tuple.TupleDescription {
	return s.left.GetTupleDesc()
}

// peekStream is a TupleStream with one tuple of lookahead.
type peekStream struct {
	src    *iterator.TupleStream
	head   *tuple.Tuple
	peeked bool
}

func newPeekStream(src iterator.PageSource) *peekStream {
	return &peekStream{src: iterator.NewTupleStream(src)}
}

func (p *peekStream) peek() (*tuple.Tuple, error) {
	if !p.peeked {
		t, err := p.src.Next()
		if err != nil {
			return nil, err
		}
		p.head, p.peeked = t, true
	}
	return p.head, nil
}

// skipEqual consumes every leading tuple equal to v and returns how many.
func (p *peekStream) skipEqual(v *tuple.Tuple, keys []int) (int, error) {
	n := 0
	for {
		t, err := p.peek()
		if err != nil || t == nil {
			return n, err
		}
		same, err := tuple.EqualOn(t, v, keys, keys)
		if err != nil || !same {
			return n, err
		}
		n++
		p.peeked = false
	}
}
