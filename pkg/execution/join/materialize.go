package join

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/iterator"
	"qpexec/pkg/storage/spill"
)

// materialize copies every page of an opened child into one sealed run. The
// run keeps the child's page boundaries.
func materialize(store *spill.TempStore, child iterator.PageIterator, prefix, operator string) (*spill.Run, error) {
	w, err := store.CreateRun(prefix, operator, child.GetTupleDesc())
	if err != nil {
		return nil, err
	}

	for {
		b, err := child.Next()
		if err != nil {
			return nil, errors.CombineErrors(err, w.Abort())
		}
		if b == nil {
			break
		}
		if err := w.WritePage(b); err != nil {
			return nil, errors.CombineErrors(err, w.Abort())
		}
	}

	run, err := w.Close()
	if err != nil {
		return nil, errors.CombineErrors(err, w.Abort())
	}
	return run, nil
}
