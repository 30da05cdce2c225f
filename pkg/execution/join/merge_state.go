package join

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// sequentialSource yields sorted left pages in order.
type sequentialSource interface {
	Next() (*page.Batch, error)
}

// indexedSource returns sorted right page k, or nil past the end.
type indexedSource interface {
	PageAt(k int) (*page.Batch, error)
}

// band is the half-open run [start, end) of equal keys inside one page.
// continues is set when the run reaches the end of the page, so equal keys
// may carry on into the next page.
type band struct {
	start, end int
	continues  bool
}

// position addresses one right tuple.
type position struct {
	page, offset int
}

// mergeState is the complete cursor state of a sort-merge join. Between two
// calls to fill it remembers exactly which (left, right) pair is emitted
// next, so output can stop at any page boundary and resume.
//
// In NOT-MATCHING mode the two cursors advance past smaller keys until they
// meet on an equal key. Entering MATCHING records both duplicate bands and
// a mark at the start of the right band. MATCHING then walks the right band
// (across pages if it continues) once per left tuple of the left band
// (across pages if it continues), rewinding to the mark between left tuples.
type mergeState struct {
	cond  *Condition
	desc  bool
	left  sequentialSource
	right indexedSource

	started  bool
	finished bool
	matching bool

	lpage *page.Batch
	lcurs int

	rpage    *page.Batch
	rpageIdx int
	rcurs    int

	leftBand  band
	rightBand band
	mark      position
	// key is the left tuple that opened the current group.
	key *tuple.Tuple
}

func newMergeState(cond *Condition, desc bool, left sequentialSource, right indexedSource) *mergeState {
	return &mergeState{cond: cond, desc: desc, left: left, right: right}
}

// fill appends joined tuples to out until it is full or the join is done.
func (m *mergeState) fill(out *page.Batch, td *tuple.TupleDescription) error {
	if !m.started {
		if err := m.start(); err != nil {
			return err
		}
	}

	for !out.IsFull() && !m.finished {
		if !m.matching {
			if err := m.stepNotMatching(); err != nil {
				return err
			}
			continue
		}

		l, r := m.lpage.Get(m.lcurs), m.rpage.Get(m.rcurs)
		if err := out.Add(tuple.CombineWithDesc(td, l, r)); err != nil {
			return err
		}
		if err := m.advanceMatching(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergeState) start() error {
	m.started = true

	lp, err := m.left.Next()
	if err != nil {
		return err
	}
	rp, err := m.right.PageAt(0)
	if err != nil {
		return err
	}
	if lp == nil || rp == nil {
		m.finished = true
		return nil
	}

	m.lpage, m.lcurs = lp, 0
	m.rpage, m.rpageIdx, m.rcurs = rp, 0, 0
	return nil
}

// compare orders the current left and right tuples in sort direction.
func (m *mergeState) compare(l, r *tuple.Tuple) (int, error) {
	c, err := m.cond.Compare(l, r)
	if err != nil {
		return 0, errors.Wrap(err, "comparing join keys")
	}
	if m.desc {
		return -c, nil
	}
	return c, nil
}

func (m *mergeState) stepNotMatching() error {
	l, r := m.lpage.Get(m.lcurs), m.rpage.Get(m.rcurs)
	c, err := m.compare(l, r)
	if err != nil {
		return err
	}

	switch {
	case c < 0:
		return m.advanceLeft()
	case c > 0:
		return m.advanceRight()
	default:
		return m.enterMatching()
	}
}

func (m *mergeState) advanceLeft() error {
	m.lcurs++
	if m.lcurs < m.lpage.Size() {
		return nil
	}
	lp, err := m.left.Next()
	if err != nil {
		return err
	}
	if lp == nil {
		m.finished = true
		return nil
	}
	m.lpage, m.lcurs = lp, 0
	return nil
}

func (m *mergeState) advanceRight() error {
	m.rcurs++
	if m.rcurs < m.rpage.Size() {
		return nil
	}
	return m.seekRight(position{page: m.rpageIdx + 1})
}

// seekRight moves the right cursor to p, loading the page if needed. A page
// past the end finishes the join.
func (m *mergeState) seekRight(p position) error {
	if m.rpage == nil || p.page != m.rpageIdx {
		rp, err := m.right.PageAt(p.page)
		if err != nil {
			return err
		}
		if rp == nil {
			m.finished = true
			m.rpage = nil
			return nil
		}
		m.rpage, m.rpageIdx = rp, p.page
	}
	m.rcurs = p.offset
	return nil
}

func (m *mergeState) enterMatching() error {
	m.key = m.lpage.Get(m.lcurs)

	lb, err := m.leftBandAt(m.lpage, m.lcurs)
	if err != nil {
		return err
	}
	rb, err := m.rightBandAt(m.rpage, m.rcurs)
	if err != nil {
		return err
	}

	m.leftBand, m.rightBand = lb, rb
	m.mark = position{page: m.rpageIdx, offset: m.rcurs}
	m.matching = true
	return nil
}

// advanceMatching moves to the next pair of the current group, or leaves
// MATCHING with both cursors just past the group.
func (m *mergeState) advanceMatching() error {
	if m.rcurs+1 < m.rightBand.end {
		m.rcurs++
		return nil
	}

	after, inGroup, err := m.extendRight()
	if err != nil || inGroup {
		return err
	}

	// Right band exhausted for this left tuple.
	if m.lcurs+1 < m.leftBand.end {
		m.lcurs++
		return m.rewindRight()
	}

	if m.leftBand.continues {
		lp, err := m.left.Next()
		if err != nil {
			return err
		}
		if lp == nil {
			m.finished = true
			return nil
		}
		m.lpage, m.lcurs = lp, 0

		same, err := m.cond.SameLeftKey(lp.Get(0), m.key)
		if err != nil {
			return err
		}
		if same {
			if m.leftBand, err = m.leftBandAt(lp, 0); err != nil {
				return err
			}
			return m.rewindRight()
		}
	} else {
		m.lcurs = m.leftBand.end
	}

	m.matching = false
	if after == nil {
		m.finished = true
		return nil
	}
	return m.seekRight(*after)
}

// extendRight checks whether the right band carries on into the next page.
// If it does, the cursor moves there and inGroup is true. Otherwise after is
// the first right position past the band, or nil when the right input ends
// with the band.
func (m *mergeState) extendRight() (after *position, inGroup bool, err error) {
	if !m.rightBand.continues {
		return &position{page: m.rpageIdx, offset: m.rightBand.end}, false, nil
	}

	next, err := m.right.PageAt(m.rpageIdx + 1)
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		return nil, false, nil
	}

	c, err := m.cond.Compare(m.key, next.Get(0))
	if err != nil {
		return nil, false, err
	}
	if c != 0 {
		return &position{page: m.rpageIdx + 1}, false, nil
	}

	m.rpage, m.rpageIdx, m.rcurs = next, m.rpageIdx+1, 0
	if m.rightBand, err = m.rightBandAt(next, 0); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// rewindRight returns the right cursor to the mark for the next left tuple.
func (m *mergeState) rewindRight() error {
	if m.rpageIdx != m.mark.page {
		rp, err := m.right.PageAt(m.mark.page)
		if err != nil {
			return err
		}
		if rp == nil {
			return errors.AssertionFailedf("backtrack page %d vanished", m.mark.page)
		}
		m.rpage, m.rpageIdx = rp, m.mark.page
	}
	m.rcurs = m.mark.offset

	rb, err := m.rightBandAt(m.rpage, m.rcurs)
	if err != nil {
		return err
	}
	m.rightBand = rb
	return nil
}

func (m *mergeState) leftBandAt(p *page.Batch, start int) (band, error) {
	return bandAt(p, start, m.cond.SameLeftKey)
}

func (m *mergeState) rightBandAt(p *page.Batch, start int) (band, error) {
	return bandAt(p, start, m.cond.SameRightKey)
}

func bandAt(p *page.Batch, start int, same func(a, b *tuple.Tuple) (bool, error)) (band, error) {
	first := p.Get(start)
	end := start + 1
	for end < p.Size() {
		eq, err := same(first, p.Get(end))
		if err != nil {
			return band{}, err
		}
		if !eq {
			break
		}
		end++
	}
	return band{start: start, end: end, continues: end == p.Size()}, nil
}
