package extsort

import (
	"slices"

	"qpexec/pkg/tuple"
)

// Comparator orders tuples on a list of key positions, ascending unless Desc.
type Comparator struct {
	Keys []int
	Desc bool
}

func NewComparator(keys []int, desc bool) Comparator {
	return Comparator{Keys: append([]int(nil), keys...), Desc: desc}
}

// Compare returns <0, 0 or >0 as a sorts before, with or after b.
func (c Comparator) Compare(a, b *tuple.Tuple) (int, error) {
	r, err := tuple.CompareOn(a, b, c.Keys, c.Keys)
	if err != nil {
		return 0, err
	}
	if c.Desc {
		return -r, nil
	}
	return r, nil
}

// SortTuples sorts ts in place. The first comparison error aborts the sort
// result and is returned.
func (c Comparator) SortTuples(ts []*tuple.Tuple) error {
	var firstErr error
	slices.SortStableFunc(ts, func(a, b *tuple.Tuple) int {
		if firstErr != nil {
			return 0
		}
		r, err := c.Compare(a, b)
		if err != nil {
			firstErr = err
		}
		return r
	})
	return firstErr
}
