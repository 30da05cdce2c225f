package types

import "io"

// Field is a single typed value inside a tuple.
type Field interface {
	Serialize(w io.Writer) error

	// CompareTo returns a negative number, zero or a positive number when the
	// receiver sorts before, equal to or after other. Fields of different
	// types are not comparable.
	CompareTo(other Field) (int, error)

	Compare(op Predicate, other Field) (bool, error)

	Type() Type

	String() string

	Equals(other Field) bool

	Length() uint32
}
