package tuple

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"qpexec/pkg/types"
)

// TupleDescription describes the schema of a tuple: the types and optional
// names of its fields, in order.
type TupleDescription struct {
	Types      []types.Type
	FieldNames []string
}

// NewTupleDesc creates a new TupleDescription given field types and optional field names.
// If fieldNames is nil, fields will have no names.
//
// Parameters:
//   - fieldTypes: slice of field types (must contain at least one element)
//   - fieldNames: optional slice of field names (must match fieldTypes length if provided)
//
// Returns:
//   - *TupleDescription: newly created tuple descriptor
//   - error: if fieldTypes is empty or fieldNames length doesn't match fieldTypes length
func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDescription, error) {
	if len(fieldTypes) == 0 {
		return nil, errors.New("must provide at least one field type")
	}

	if fieldNames != nil && len(fieldNames) != len(fieldTypes) {
		return nil, errors.Newf("field names length (%d) must match field types length (%d)",
			len(fieldNames), len(fieldTypes))
	}

	td := &TupleDescription{
		Types: append([]types.Type(nil), fieldTypes...),
	}
	if fieldNames != nil {
		td.FieldNames = append([]string(nil), fieldNames...)
	}
	return td, nil
}

// MustTupleDesc is NewTupleDesc for statically known schemas; it panics on error.
func MustTupleDesc(fieldTypes []types.Type, fieldNames []string) *TupleDescription {
	td, err := NewTupleDesc(fieldTypes, fieldNames)
	if err != nil {
		panic(err)
	}
	return td
}

// NumFields returns the number of fields in this tuple descriptor.
func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// GetFieldName returns the name of the ith field, or "" when the schema is unnamed.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", errors.Newf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	if td.FieldNames == nil {
		return "", nil
	}
	return td.FieldNames[i], nil
}

// TypeAtIndex returns the type of the ith field.
func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, errors.Newf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// GetSize returns the size in bytes of tuples corresponding to this TupleDescription.
// This is the sum of all field type sizes.
func (td *TupleDescription) GetSize() uint32 {
	var size uint32
	for _, t := range td.Types {
		size += t.Size()
	}
	return size
}

// Equals reports whether two descriptors have the same field types in the
// same order. Field names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if td == nil || other == nil {
		return td == other
	}
	if len(td.Types) != len(other.Types) {
		return false
	}
	for i, t := range td.Types {
		if other.Types[i] != t {
			return false
		}
	}
	return true
}

// String returns "Type1(fieldName1),Type2(fieldName2),...".
func (td *TupleDescription) String() string {
	parts := make([]string, len(td.Types))
	for i, t := range td.Types {
		name := "null"
		if td.FieldNames != nil && td.FieldNames[i] != "" {
			name = td.FieldNames[i]
		}
		parts[i] = fmt.Sprintf("%s(%s)", t, name)
	}
	return strings.Join(parts, ",")
}

// FindFieldIndex locates a field by name (case-sensitive).
func (td *TupleDescription) FindFieldIndex(fieldName string) (int, error) {
	for i, name := range td.FieldNames {
		if name == fieldName {
			return i, nil
		}
	}
	return -1, errors.Newf("field %q not found", fieldName)
}

// Project returns the descriptor restricted to the given field indices.
func (td *TupleDescription) Project(indices []int) (*TupleDescription, error) {
	fieldTypes := make([]types.Type, len(indices))
	var names []string
	if td.FieldNames != nil {
		names = make([]string, len(indices))
	}

	for i, idx := range indices {
		t, err := td.TypeAtIndex(idx)
		if err != nil {
			return nil, err
		}
		fieldTypes[i] = t
		if names != nil {
			names[i] = td.FieldNames[idx]
		}
	}
	return NewTupleDesc(fieldTypes, names)
}

// Combine merges two TupleDescriptions into one: all fields of td1 followed
// by all fields of td2. A nil argument yields the other descriptor.
func Combine(td1, td2 *TupleDescription) *TupleDescription {
	if td1 == nil {
		return td2
	}
	if td2 == nil {
		return td1
	}

	combined := &TupleDescription{
		Types: append(append([]types.Type(nil), td1.Types...), td2.Types...),
	}

	if td1.FieldNames != nil || td2.FieldNames != nil {
		combined.FieldNames = append(namesOrBlank(td1), namesOrBlank(td2)...)
	}
	return combined
}

func namesOrBlank(td *TupleDescription) []string {
	if td.FieldNames != nil {
		return append([]string(nil), td.FieldNames...)
	}
	return make([]string, len(td.Types))
}
