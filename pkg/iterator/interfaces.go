package iterator

import (
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// PageIterator is the contract every operator implements. Data flows a page
// at a time from the leaves to the root.
type PageIterator interface {
	// Open prepares the operator and, recursively, its children. Blocking
	// operators (sorts, join materialization) do their input pass here. If
	// Open fails the caller must not call Next, but may still call Close.
	Open() error

	// Next returns the next non-empty page, or nil once the output is
	// exhausted. After the end marker every further call returns nil.
	Next() (*page.Batch, error)

	// Close releases children and all temp storage the operator owns. It is
	// idempotent; cleanup failures are logged rather than returned.
	Close() error

	// GetTupleDesc returns the schema of the produced tuples. It is valid
	// before Open.
	GetTupleDesc() *tuple.TupleDescription
}

// PageSource is the read side shared by operators and spilled runs.
type PageSource interface {
	Next() (*page.Batch, error)
}
