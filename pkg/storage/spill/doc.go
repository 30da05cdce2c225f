// Package spill manages the temporary runs that operators write when their
// input does not fit in the buffer budget.
//
// A TempStore owns one directory per query. Runs are write-once: a RunWriter
// appends framed pages and seals the run on Close, after which any number of
// RunReaders may scan it from the start. Every run name comes from the
// store's IDGenerator, so concurrent queries never collide and names within a
// query are unique for the life of the store.
package spill
