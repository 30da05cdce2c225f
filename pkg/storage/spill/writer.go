package spill

import (
	"bufio"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"qpexec/pkg/dberror"
	"qpexec/pkg/storage/page"
)

const osCreateExclusive = os.O_CREATE | os.O_EXCL | os.O_WRONLY

// RunWriter appends pages to a run that is not yet sealed.
type RunWriter struct {
	store  *TempStore
	run    *Run
	file   afero.File
	buf    *bufio.Writer
	closed bool
}

func newRunWriter(s *TempStore, run *Run, f afero.File) *RunWriter {
	return &RunWriter{
		store: s,
		run:   run,
		file:  f,
		buf:   bufio.NewWriter(f),
	}
}

// Run returns the run being written.
func (w *RunWriter) Run() *Run {
	return w.run
}

// WritePage appends b as one frame. Empty batches are not written so that
// page indices in a run always address real pages.
func (w *RunWriter) WritePage(b *page.Batch) error {
	if w.closed {
		return errors.AssertionFailedf("write to sealed run %s", w.run.Name)
	}
	if b.IsEmpty() {
		return nil
	}

	n, err := page.WriteFrame(w.buf, b, w.store.compression)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeTempStorage, "WritePage", componentName).
			WithDetail("run %s page %d", w.run.Name, w.run.Pages)
	}

	w.run.Pages++
	w.run.PageCapacity = max(w.run.PageCapacity, b.Capacity())
	w.run.Tuples += b.Size()
	w.run.Bytes += int64(n)
	w.store.bytesTotal.Add(int64(n))
	w.store.metrics.PageSpilled(w.run.Operator, n)
	return nil
}

// Close flushes and seals the run, returning it for reading.
func (w *RunWriter) Close() (*Run, error) {
	if w.closed {
		return w.run, nil
	}
	w.closed = true

	err := w.buf.Flush()
	err = errors.CombineErrors(err, w.file.Close())
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeTempStorage, "SealRun", componentName).
			WithDetail("run %s", w.run.Name)
	}

	w.run.sealed = true
	return w.run, nil
}

// Abort closes the file and deletes the partial run.
func (w *RunWriter) Abort() error {
	var err error
	if !w.closed {
		w.closed = true
		err = w.file.Close()
	}
	return errors.CombineErrors(err, w.store.Remove(w.run))
}
