package extsort

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/storage/page"
	"qpexec/pkg/storage/spill"
	"qpexec/pkg/tuple"
)

// runHead is the merge cursor over one input run: its reader, the current
// page (fetched lazily), the offset in it and whether the run is used up.
type runHead struct {
	reader *spill.RunReader
	page   *page.Batch
	idx    int
	done   bool
}

// current returns the head tuple, fetching the first page on demand.
func (h *runHead) current() (*tuple.Tuple, error) {
	if h.done {
		return nil, nil
	}
	if h.page == nil {
		if err := h.fetch(); err != nil || h.done {
			return nil, err
		}
	}
	return h.page.Get(h.idx), nil
}

func (h *runHead) advance() error {
	h.idx++
	if h.idx < h.page.Size() {
		return nil
	}
	return h.fetch()
}

func (h *runHead) fetch() error {
	b, err := h.reader.Next()
	if err != nil {
		return err
	}
	if b == nil {
		h.done = true
		h.page = nil
		return nil
	}
	h.page, h.idx = b, 0
	return nil
}

// merger performs one bounded multiway merge of sorted runs into a new run.
type merger struct {
	store    *spill.TempStore
	cmp      Comparator
	td       *tuple.TupleDescription
	capacity int
	prefix   string
	operator string
}

// mergeResult reports the output run and how many inputs were open at once.
type mergeResult struct {
	run         *spill.Run
	openReaders int
}

// merge combines runs (at most B-1 of them) into one sorted run. It holds
// one input page per run plus one output page. Input runs are left in place;
// the caller deletes them.
func (m *merger) merge(runs []*spill.Run) (res mergeResult, err error) {
	heads := make([]*runHead, 0, len(runs))
	defer func() {
		for _, h := range heads {
			err = errors.CombineErrors(err, h.reader.Close())
		}
	}()

	before := m.store.OpenReaders()
	for _, r := range runs {
		rd, err := m.store.OpenRun(r, m.capacity)
		if err != nil {
			return mergeResult{}, err
		}
		heads = append(heads, &runHead{reader: rd})
	}
	res.openReaders = m.store.OpenReaders() - before

	w, err := m.store.CreateRun(m.prefix, m.operator, m.td)
	if err != nil {
		return mergeResult{}, err
	}

	if err := m.drain(heads, w); err != nil {
		return mergeResult{}, errors.CombineErrors(err, w.Abort())
	}

	res.run, err = w.Close()
	if err != nil {
		return mergeResult{}, errors.CombineErrors(err, w.Abort())
	}
	return res, nil
}

// drain repeatedly moves the smallest head tuple to the output. Ties go to
// the earliest run.
func (m *merger) drain(heads []*runHead, w *spill.RunWriter) error {
	out := page.NewBatch(m.td, m.capacity)

	for {
		var (
			minHead  *runHead
			minTuple *tuple.Tuple
		)
		for _, h := range heads {
			t, err := h.current()
			if err != nil {
				return err
			}
			if t == nil {
				continue
			}
			if minTuple == nil {
				minHead, minTuple = h, t
				continue
			}
			c, err := m.cmp.Compare(t, minTuple)
			if err != nil {
				return err
			}
			if c < 0 {
				minHead, minTuple = h, t
			}
		}

		if minHead == nil {
			break
		}

		if err := out.Add(minTuple); err != nil {
			return err
		}
		if out.IsFull() {
			if err := w.WritePage(out); err != nil {
				return err
			}
			out = page.NewBatch(m.td, m.capacity)
		}
		if err := minHead.advance(); err != nil {
			return err
		}
	}

	return w.WritePage(out)
}
