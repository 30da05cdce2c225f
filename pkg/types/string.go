package types

import (
	"io"
	"strings"
)

// StringMaxSize defines the maximum size for string fields in bytes.
const (
	StringMaxSize = 128
)

// StringField represents a string field. Its on-disk image is always
// 4 + StringMaxSize bytes regardless of the value length.
type StringField struct {
	Value string
}

// NewStringField creates a new StringField. Values longer than StringMaxSize
// are truncated to fit.
func NewStringField(value string) *StringField {
	if len(value) > StringMaxSize {
		value = value[:StringMaxSize]
	}
	return &StringField{Value: value}
}

// Serialize writes the string field to the provided writer in binary format.
// The serialization format consists of:
// 1. 4 bytes for the actual string length (big-endian uint32)
// 2. The string bytes
// 3. Padding bytes to reach the StringMaxSize limit
func (s *StringField) Serialize(w io.Writer) error {
	length := min(len(s.Value), StringMaxSize)

	if err := serializeUint32(w, uint32(length)); err != nil { // #nosec G115
		return err
	}

	if _, err := io.WriteString(w, s.Value[:length]); err != nil {
		return err
	}

	padding := make([]byte, StringMaxSize-length)
	_, err := w.Write(padding)
	return err
}

// CompareTo compares lexicographically by bytes.
func (s *StringField) CompareTo(other Field) (int, error) {
	o, ok := other.(*StringField)
	if !ok {
		return 0, incomparable(s, other)
	}
	return strings.Compare(s.Value, o.Value), nil
}

func (s *StringField) Compare(op Predicate, other Field) (bool, error) {
	return compareWith(s, op, other)
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

func (s *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	if !ok {
		return false
	}
	return s.Value == o.Value
}

func (s *StringField) Length() uint32 {
	return StringType.Size()
}
