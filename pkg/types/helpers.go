package types

import (
	"cmp"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrIncomparable is returned when two fields of different types are compared.
var ErrIncomparable = errors.New("fields are not comparable")

func incomparable(a, b Field) error {
	return errors.Wrapf(ErrIncomparable, "%s vs %s", a.Type(), b.Type())
}

// compareWith evaluates op against the three-way result of a.CompareTo(b).
func compareWith(a Field, op Predicate, b Field) (bool, error) {
	c, err := a.CompareTo(b)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func compareOrdered[T cmp.Ordered](a, b T) int {
	return cmp.Compare(a, b)
}

func serializeUint32(w io.Writer, v uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	_, err := w.Write(b)
	return err
}

func serializeUint64(w io.Writer, v uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	_, err := w.Write(b)
	return err
}

// readBytes reads exactly size bytes from the reader.
func readBytes(r io.Reader, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
