package extsort

import (
	"qpexec/pkg/storage/page"
	"qpexec/pkg/storage/spill"
)

// PageCursor gives page-index access to a sorted run. Moving forward reads
// on from the current position; moving backward reopens the run and skips
// frames, so fetching page k costs O(k) at worst.
type PageCursor struct {
	store    *spill.TempStore
	run      *spill.Run
	capacity int
	reader   *spill.RunReader

	// last page returned, so asking for the same page twice costs nothing
	last    *page.Batch
	lastIdx int
}

// PageAt returns page k, or nil if the run has fewer than k+1 pages.
func (c *PageCursor) PageAt(k int) (*page.Batch, error) {
	if c.run == nil || k < 0 || k >= c.run.Pages {
		return nil, nil
	}
	if c.last != nil && c.lastIdx == k {
		return c.last, nil
	}

	if c.reader == nil || c.reader.Position() > k {
		if err := c.reopen(); err != nil {
			return nil, err
		}
	}
	if err := c.reader.Skip(k - c.reader.Position()); err != nil {
		return nil, err
	}
	b, err := c.reader.Next()
	if err != nil {
		return nil, err
	}
	c.last, c.lastIdx = b, k
	return b, nil
}

// Pages is the number of pages in the run.
func (c *PageCursor) Pages() int {
	if c.run == nil {
		return 0
	}
	return c.run.Pages
}

func (c *PageCursor) reopen() error {
	if err := c.Close(); err != nil {
		return err
	}
	rd, err := c.store.OpenRun(c.run, c.capacity)
	if err != nil {
		return err
	}
	c.reader = rd
	return nil
}

// Close releases the underlying reader.
func (c *PageCursor) Close() error {
	c.last = nil
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	return err
}
