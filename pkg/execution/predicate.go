package execution

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"qpexec/pkg/tuple"
	"qpexec/pkg/types"
)

// Predicate compares one field of a tuple against a constant operand.
type Predicate struct {
	fieldIndex int
	op         types.Predicate
	operand    types.Field
}

func NewPredicate(fieldIndex int, op types.Predicate, operand types.Field) *Predicate {
	return &Predicate{
		fieldIndex: fieldIndex,
		op:         op,
		operand:    operand,
	}
}

// Filter reports whether t satisfies the predicate.
func (p *Predicate) Filter(t *tuple.Tuple) (bool, error) {
	f, err := t.GetField(p.fieldIndex)
	if err != nil {
		return false, err
	}
	ok, err := f.Compare(p.op, p.operand)
	if err != nil {
		return false, errors.Wrapf(err, "evaluating %s", p)
	}
	return ok, nil
}

func (p *Predicate) String() string {
	return fmt.Sprintf("field[%d] %s %s", p.fieldIndex, p.op, p.operand)
}
