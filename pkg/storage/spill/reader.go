package spill

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"qpexec/pkg/dberror"
	"qpexec/pkg/storage/page"
)

// RunReader scans a sealed run from its first page.
type RunReader struct {
	store    *TempStore
	run      *Run
	file     afero.File
	buf      *bufio.Reader
	capacity int
	pos      int
	closed   bool
}

func newRunReader(s *TempStore, run *Run, f afero.File, capacity int) *RunReader {
	return &RunReader{
		store:    s,
		run:      run,
		file:     f,
		buf:      bufio.NewReader(f),
		capacity: capacity,
	}
}

// Next returns the next page, or nil at the end of the run. A partial or
// corrupt frame is a CORRUPT_PAGE error.
func (r *RunReader) Next() (*page.Batch, error) {
	if r.closed {
		return nil, errors.AssertionFailedf("read from closed reader on run %s", r.run.Name)
	}

	b, err := page.ReadFrame(r.buf, r.run.TupleDesc, r.capacity)
	if err != nil {
		return nil, r.classify(err, "Next")
	}

	r.pos++
	r.store.metrics.PageRead(r.run.Operator)
	return b, nil
}

// Skip advances past n pages without decoding them. Skipping beyond the end
// leaves the reader at the end.
func (r *RunReader) Skip(n int) error {
	for range n {
		if err := page.SkipFrame(r.buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return r.classify(err, "Skip")
		}
		r.pos++
	}
	return nil
}

// Position is the index of the page the next call to Next returns.
func (r *RunReader) Position() int {
	return r.pos
}

func (r *RunReader) Run() *Run {
	return r.run
}

// Close releases the file handle. Safe to call more than once.
func (r *RunReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.store.openReaders.Add(-1)
	return r.file.Close()
}

func (r *RunReader) classify(err error, op string) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	code := dberror.CodeTempStorage
	if errors.Is(err, page.ErrCorruptPage) {
		code = dberror.CodeCorruptPage
	}
	return dberror.Wrap(err, code, op, "RunReader").
		WithDetail("run %s page %d", r.run.Name, r.pos)
}
