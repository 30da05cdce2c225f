package tuple

import (
	"strings"

	"github.com/cockroachdb/errors"

	"qpexec/pkg/types"
)

// Tuple is one row: a fixed-arity ordered list of field values conforming to
// a TupleDescription.
type Tuple struct {
	TupleDesc *TupleDescription
	fields    []types.Field
}

// NewTuple creates a new tuple with the given schema and all fields unset.
func NewTuple(td *TupleDescription) *Tuple {
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}
}

// FromFields builds a tuple from already typed values.
func FromFields(td *TupleDescription, fields ...types.Field) (*Tuple, error) {
	if len(fields) != td.NumFields() {
		return nil, errors.Newf("expected %d fields, got %d", td.NumFields(), len(fields))
	}
	t := NewTuple(td)
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return errors.Newf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}

	expectedType := t.TupleDesc.Types[i]
	if field.Type() != expectedType {
		return errors.Newf("field type mismatch: expected %v, got %v",
			expectedType, field.Type())
	}

	t.fields[i] = field
	return nil
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, errors.Newf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// NumFields returns the tuple arity.
func (t *Tuple) NumFields() int {
	return len(t.fields)
}

// String returns the fields separated by tabs.
func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, field := range t.fields {
		if field != nil {
			parts[i] = field.String()
		} else {
			parts[i] = "null"
		}
	}
	return strings.Join(parts, "\t")
}

// CombineTuples concatenates the fields of t1 and t2 into a new tuple whose
// schema is Combine(t1.TupleDesc, t2.TupleDesc).
func CombineTuples(t1, t2 *Tuple) (*Tuple, error) {
	if t1 == nil || t2 == nil {
		return nil, errors.New("cannot combine nil tuples")
	}
	return CombineWithDesc(Combine(t1.TupleDesc, t2.TupleDesc), t1, t2), nil
}

// CombineWithDesc is CombineTuples with a precomputed output schema. Join
// operators call it once per emitted pair.
func CombineWithDesc(td *TupleDescription, t1, t2 *Tuple) *Tuple {
	fields := make([]types.Field, 0, len(t1.fields)+len(t2.fields))
	fields = append(fields, t1.fields...)
	fields = append(fields, t2.fields...)
	return &Tuple{TupleDesc: td, fields: fields}
}

// Project returns a new tuple holding only the given field positions.
func (t *Tuple) Project(td *TupleDescription, indices []int) (*Tuple, error) {
	out := NewTuple(td)
	for i, idx := range indices {
		f, err := t.GetField(idx)
		if err != nil {
			return nil, err
		}
		out.fields[i] = f
	}
	return out, nil
}

// Clone returns a shallow copy; field values are immutable and shared.
func (t *Tuple) Clone() *Tuple {
	return &Tuple{
		TupleDesc: t.TupleDesc,
		fields:    append([]types.Field(nil), t.fields...),
	}
}
