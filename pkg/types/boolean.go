package types

import (
	"io"
	"strconv"
)

// BoolField represents a boolean field. false sorts before true.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (b *BoolField) Serialize(w io.Writer) error {
	var v byte
	if b.Value {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func (b *BoolField) CompareTo(other Field) (int, error) {
	o, ok := other.(*BoolField)
	if !ok {
		return 0, incomparable(b, other)
	}
	switch {
	case b.Value == o.Value:
		return 0, nil
	case !b.Value:
		return -1, nil
	default:
		return 1, nil
	}
}

func (b *BoolField) Compare(op Predicate, other Field) (bool, error) {
	return compareWith(b, op, other)
}

func (b *BoolField) Type() Type {
	return BoolType
}

func (b *BoolField) String() string {
	return strconv.FormatBool(b.Value)
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && b.Value == o.Value
}

func (b *BoolField) Length() uint32 {
	return BoolType.Size()
}
