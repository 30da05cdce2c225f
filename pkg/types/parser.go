package types

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// ParseField reads one serialized field of the given type from r.
// A short read surfaces as io.ErrUnexpectedEOF (or io.EOF when nothing at all
// could be read) so callers can tell truncation from a clean end.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	switch fieldType {
	case IntType:
		return parseIntField(r)

	case StringType:
		return parseStringField(r)

	case BoolType:
		return parseBoolField(r)

	default:
		return nil, errors.Newf("unsupported field type: %v", fieldType)
	}
}

func parseIntField(r io.Reader) (*IntField, error) {
	b, err := readBytes(r, IntType.Size())
	if err != nil {
		return nil, err
	}
	return NewIntField(int64(binary.BigEndian.Uint64(b))), nil // #nosec G115
}

// parseStringField reads the length prefix, the payload bytes and then
// discards the padding up to StringMaxSize.
func parseStringField(r io.Reader) (*StringField, error) {
	b, err := readBytes(r, StringType.Size())
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(b[:4])
	if length > StringMaxSize {
		return nil, errors.Newf("invalid string length %d exceeds max %d", length, StringMaxSize)
	}
	return &StringField{Value: string(b[4 : 4+length])}, nil
}

func parseBoolField(r io.Reader) (*BoolField, error) {
	b, err := readBytes(r, BoolType.Size())
	if err != nil {
		return nil, err
	}
	switch b[0] {
	case 0:
		return NewBoolField(false), nil
	case 1:
		return NewBoolField(true), nil
	default:
		return nil, errors.Newf("invalid boolean byte 0x%02x", b[0])
	}
}
