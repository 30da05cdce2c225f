// Package page holds the in-memory page of tuples that flows between
// operators, and the binary frame format used when a page is spilled.
package page

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"qpexec/pkg/tuple"
)

const (
	// DefaultPageSize is the byte size of a page when none is configured.
	DefaultPageSize = 4096
)

// ErrBatchFull is returned by Add when the batch is at capacity.
var ErrBatchFull = errors.New("batch is full")

// Batch is one page worth of tuples. Its capacity is fixed at creation and
// Size never exceeds it.
type Batch struct {
	td       *tuple.TupleDescription
	capacity int
	tuples   []*tuple.Tuple
}

// CapacityFor returns how many tuples of schema td fit in a page of pageSize
// bytes. At least one tuple must fit.
func CapacityFor(pageSize int, td *tuple.TupleDescription) (int, error) {
	size := int(td.GetSize())
	if size <= 0 {
		return 0, errors.Newf("tuple size must be positive, got %d", size)
	}
	c := pageSize / size
	if c < 1 {
		return 0, errors.Newf("page size %d too small for tuple size %d", pageSize, size)
	}
	return c, nil
}

// NewBatch returns an empty batch for schema td holding at most capacity tuples.
func NewBatch(td *tuple.TupleDescription, capacity int) *Batch {
	if capacity < 1 {
		panic(errors.AssertionFailedf("batch capacity must be positive, got %d", capacity))
	}
	return &Batch{
		td:       td,
		capacity: capacity,
		tuples:   make([]*tuple.Tuple, 0, capacity),
	}
}

// Add appends t, failing with ErrBatchFull when the batch is at capacity.
func (b *Batch) Add(t *tuple.Tuple) error {
	if b.IsFull() {
		return ErrBatchFull
	}
	b.tuples = append(b.tuples, t)
	return nil
}

// Get returns the tuple at position i.
func (b *Batch) Get(i int) *tuple.Tuple {
	return b.tuples[i]
}

// Tuples exposes the batch contents in order. Callers must not append to it.
func (b *Batch) Tuples() []*tuple.Tuple {
	return b.tuples
}

func (b *Batch) Size() int {
	return len(b.tuples)
}

func (b *Batch) Capacity() int {
	return b.capacity
}

func (b *Batch) IsFull() bool {
	return len(b.tuples) == b.capacity
}

func (b *Batch) IsEmpty() bool {
	return len(b.tuples) == 0
}

func (b *Batch) TupleDesc() *tuple.TupleDescription {
	return b.td
}

// String renders the batch one tuple per line, for debug logging.
func (b *Batch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch[%d/%d]\n", len(b.tuples), b.capacity)
	for _, t := range b.tuples {
		sb.WriteString("  ")
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
