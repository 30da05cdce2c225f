package types

import (
	"io"
	"strconv"
)

// IntField represents a 64-bit signed integer field
type IntField struct {
	Value int64
}

func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

func (f *IntField) Serialize(w io.Writer) error {
	return serializeUint64(w, uint64(f.Value)) // #nosec G115
}

func (f *IntField) CompareTo(other Field) (int, error) {
	o, ok := other.(*IntField)
	if !ok {
		return 0, incomparable(f, other)
	}
	return compareOrdered(f.Value, o.Value), nil
}

func (f *IntField) Compare(op Predicate, other Field) (bool, error) {
	return compareWith(f, op, other)
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	if !ok {
		return false
	}
	return f.Value == o.Value
}

func (f *IntField) Length() uint32 {
	return IntType.Size()
}
