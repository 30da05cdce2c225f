package iterator

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// ForEachTuple calls fn for every tuple produced by an opened iterator, in
// order. Returning an error from fn stops the scan.
func ForEachTuple(src PageSource, fn func(*tuple.Tuple) error) error {
	for {
		b, err := src.Next()
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		for _, t := range b.Tuples() {
			if err := fn(t); err != nil {
				return err
			}
		}
	}
}

// Collect drains an opened source into a slice.
func Collect(src PageSource) ([]*tuple.Tuple, error) {
	var out []*tuple.Tuple
	err := ForEachTuple(src, func(t *tuple.Tuple) error {
		out = append(out, t)
		return nil
	})
	return out, err
}

// CollectPages drains an opened source, keeping the page boundaries.
func CollectPages(src PageSource) ([]*page.Batch, error) {
	var out []*page.Batch
	for {
		b, err := src.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return out, nil
		}
		out = append(out, b)
	}
}

// Count returns the number of tuples left in an opened source.
func Count(src PageSource) (int, error) {
	n := 0
	for {
		b, err := src.Next()
		if err != nil {
			return 0, err
		}
		if b == nil {
			return n, nil
		}
		n += b.Size()
	}
}

// Drain opens it, collects every tuple and closes it.
func Drain(it PageIterator) (_ []*tuple.Tuple, err error) {
	if err := it.Open(); err != nil {
		return nil, errors.CombineErrors(err, it.Close())
	}
	defer func() {
		err = errors.CombineErrors(err, it.Close())
	}()
	return Collect(it)
}
