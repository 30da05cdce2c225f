package tuple

import (
	"io"

	"github.com/cockroachdb/errors"

	"qpexec/pkg/types"
)

// Serialize writes every field of t in schema order. The record is exactly
// t.TupleDesc.GetSize() bytes.
func (t *Tuple) Serialize(w io.Writer) error {
	for i, f := range t.fields {
		if f == nil {
			return errors.Newf("cannot serialize tuple with unset field %d", i)
		}
		if err := f.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Parse reads one fixed-size record of schema td from r.
func Parse(r io.Reader, td *TupleDescription) (*Tuple, error) {
	t := NewTuple(td)
	for i, typ := range td.Types {
		f, err := types.ParseField(r, typ)
		if err != nil {
			return nil, err
		}
		t.fields[i] = f
	}
	return t, nil
}
