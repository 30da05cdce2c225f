package iterator

import (
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// TupleStream flattens a page source into single tuples while remembering
// its position inside the current page. Operators that repack their output
// into full pages (Filter, Project, Distinct) pull through one of these.
type TupleStream struct {
	src  PageSource
	cur  *page.Batch
	pos  int
	done bool
}

func NewTupleStream(src PageSource) *TupleStream {
	return &TupleStream{src: src}
}

// Next returns the next tuple, or nil at the end of the source.
func (s *TupleStream) Next() (*tuple.Tuple, error) {
	for !s.done {
		if s.cur != nil && s.pos < s.cur.Size() {
			t := s.cur.Get(s.pos)
			s.pos++
			return t, nil
		}

		b, err := s.src.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			s.done = true
			s.cur = nil
			break
		}
		s.cur, s.pos = b, 0
	}
	return nil, nil
}

// FillPage pulls tuples from s, keeps those accepted by keep (nil keeps all)
// after applying mapFn (nil is the identity), and returns a page that is full
// or holds the final remainder. It returns nil when nothing is left.
func FillPage(
	s *TupleStream,
	td *tuple.TupleDescription,
	capacity int,
	keep func(*tuple.Tuple) (bool, error),
	mapFn func(*tuple.Tuple) (*tuple.Tuple, error),
) (*page.Batch, error) {
	out := page.NewBatch(td, capacity)
	for !out.IsFull() {
		t, err := s.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}

		if keep != nil {
			ok, err := keep(t)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if mapFn != nil {
			if t, err = mapFn(t); err != nil {
				return nil, err
			}
		}
		if err := out.Add(t); err != nil {
			return nil, err
		}
	}

	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}
