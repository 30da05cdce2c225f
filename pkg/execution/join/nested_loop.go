package join

import (
	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/storage/spill"
	"qpexec/pkg/tuple"
)

// nestedLoop is the engine shared by BlockNestedLoopJoin and
// CrossProductJoin. The right input is materialized once in Open and
// rescanned for every block of left pages. For each right page, each left
// tuple of the block is paired with each tuple of that page.
type nestedLoop struct {
	iterator.BaseOperator
	qc         *registry.QueryContext
	left       iterator.PageIterator
	right      iterator.PageIterator
	cond       *Condition // nil pairs every tuple
	numBuffers int
	blockPages int
	runPrefix  string

	td       *tuple.TupleDescription
	capacity int

	rightRun    *spill.Run
	rightCap    int
	rightReader *spill.RunReader
	rightClosed bool
	leftClosed  bool

	// Resumption cursor: block[lcurs] is paired next with rightPage[rcurs].
	block     []*tuple.Tuple
	rightPage *page.Batch
	lcurs     int
	rcurs     int
	done      bool
}

func newNestedLoop(
	qc *registry.QueryContext,
	name string,
	cond *Condition,
	left, right iterator.PageIterator,
	numBuffers, blockPages int,
	runPrefix string,
) (*nestedLoop, error) {
	td := outputDesc(left, right)
	capacity, err := page.CapacityFor(qc.PageSize(), td)
	if err != nil {
		return nil, err
	}
	rightCap, err := page.CapacityFor(qc.PageSize(), right.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	return &nestedLoop{
		BaseOperator: iterator.NewBaseOperator(name, qc.Logger(), qc.Metrics()),
		qc:           qc,
		left:         left,
		right:        right,
		cond:         cond,
		numBuffers:   numBuffers,
		blockPages:   blockPages,
		runPrefix:    runPrefix,
		td:           td,
		capacity:     capacity,
		rightCap:     rightCap,
	}, nil
}

// WithCapacity overrides the output page capacity.
func (n *nestedLoop) WithCapacity(capacity int) {
	n.capacity = capacity
}

func (n *nestedLoop) Open() error {
	if n.blockPages < 1 {
		return dberror.InsufficientBuffers(n.Name(), n.numBuffers, MinBuffers)
	}
	if err := n.CheckCapacity(n.capacity); err != nil {
		return err
	}

	if err := n.left.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", n.Name()).WithDetail("left input")
	}
	if err := n.right.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", n.Name()).WithDetail("right input")
	}

	run, err := materialize(n.qc.TempStore(), n.right, n.runPrefix, n.Name())
	n.closeRight()
	if err != nil {
		return dberror.Wrap(err, dberror.CodeTempStorage, "MaterializeRight", n.Name())
	}
	n.rightRun = run
	n.rightCap = max(n.rightCap, run.PageCapacity)

	if run.Tuples == 0 {
		n.done = true
	}

	n.Logger().Debug("right input materialized", "run", run.Name, "pages", run.Pages, "tuples", run.Tuples)
	n.MarkOpened()
	return nil
}

func (n *nestedLoop) Next() (*page.Batch, error) {
	if err := n.CheckOpen(); err != nil {
		return nil, err
	}

	out := page.NewBatch(n.td, n.capacity)
	for !out.IsFull() && !n.done {
		if n.block == nil {
			ok, err := n.loadBlock()
			if err != nil {
				return nil, err
			}
			if !ok {
				n.done = true
				break
			}
		}

		if n.rightPage == nil {
			p, err := n.rightReader.Next()
			if err != nil {
				return nil, err
			}
			if p == nil {
				// Block has met every right page.
				n.block = nil
				continue
			}
			n.rightPage = p
		}

		l, r := n.block[n.lcurs], n.rightPage.Get(n.rcurs)
		n.advance()

		if n.cond != nil {
			ok, err := n.cond.Matches(l, r)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if err := out.Add(tuple.CombineWithDesc(n.td, l, r)); err != nil {
			return nil, err
		}
	}

	if out.IsEmpty() {
		return nil, nil
	}
	return n.Emit(out), nil
}

// advance moves the cursor past the pair just tested:
//   - last left tuple and last right tuple: fetch the next right page, both cursors to 0
//   - last right tuple only: next left tuple, right cursor to 0
//   - otherwise: next right tuple
func (n *nestedLoop) advance() {
	lastRight := n.rcurs+1 >= n.rightPage.Size()
	lastLeft := n.lcurs+1 >= len(n.block)

	switch {
	case lastRight && lastLeft:
		n.rightPage = nil
		n.lcurs, n.rcurs = 0, 0
	case lastRight:
		n.lcurs++
		n.rcurs = 0
	default:
		n.rcurs++
	}
}

// loadBlock reads up to blockPages left pages and restarts the right scan.
// It returns false once the left input is exhausted.
func (n *nestedLoop) loadBlock() (bool, error) {
	var block []*tuple.Tuple
	for pages := 0; pages < n.blockPages; pages++ {
		b, err := n.left.Next()
		if err != nil {
			return false, err
		}
		if b == nil {
			break
		}
		block = append(block, b.Tuples()...)
	}
	if len(block) == 0 {
		return false, nil
	}

	if n.rightReader != nil {
		n.LogCleanup("close right scan", n.rightReader.Close())
	}
	rd, err := n.qc.TempStore().OpenRun(n.rightRun, n.rightCap)
	if err != nil {
		return false, err
	}

	n.rightReader = rd
	n.block = block
	n.rightPage = nil
	n.lcurs, n.rcurs = 0, 0
	return true, nil
}

func (n *nestedLoop) Close() error {
	if !n.BeginClose() {
		return nil
	}
	if n.rightReader != nil {
		n.LogCleanup("close right scan", n.rightReader.Close())
		n.rightReader = nil
	}
	if n.rightRun != nil {
		n.LogCleanup("remove right run", n.qc.TempStore().Remove(n.rightRun))
		n.rightRun = nil
	}
	n.closeRight()
	if !n.leftClosed {
		n.leftClosed = true
		n.LogCleanup("close left child", n.left.Close())
	}
	n.block, n.rightPage = nil, nil
	return nil
}

func (n *nestedLoop) closeRight() {
	if n.rightClosed {
		return
	}
	n.rightClosed = true
	n.LogCleanup("close right child", n.right.Close())
}

func (n *nestedLoop) GetTupleDesc() *tuple.TupleDescription {
	return n.td
}
