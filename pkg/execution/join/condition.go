package join

import (
	"fmt"
	"strings"

	"qpexec/pkg/dberror"
	"qpexec/pkg/tuple"
)

// KeyPair equates field Left of the left input with field Right of the right input.
type KeyPair struct {
	Left  int
	Right int
}

// Condition is a conjunction of equalities between left and right fields.
// Its order also fixes the sort order used by SortMergeJoin.
type Condition struct {
	pairs     []KeyPair
	leftKeys  []int
	rightKeys []int
}

// NewCondition builds an equi-join condition from at least one key pair.
func NewCondition(pairs ...KeyPair) (*Condition, error) {
	if len(pairs) == 0 {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "join condition needs at least one key pair")
	}
	c := &Condition{pairs: append([]KeyPair(nil), pairs...)}
	for _, p := range pairs {
		if p.Left < 0 || p.Right < 0 {
			return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "negative join key in %+v", p)
		}
		c.leftKeys = append(c.leftKeys, p.Left)
		c.rightKeys = append(c.rightKeys, p.Right)
	}
	return c, nil
}

// OnKeys pairs leftKeys[i] with rightKeys[i].
func OnKeys(leftKeys, rightKeys []int) (*Condition, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
			"join key arity mismatch: %d left, %d right", len(leftKeys), len(rightKeys))
	}
	pairs := make([]KeyPair, len(leftKeys))
	for i := range leftKeys {
		pairs[i] = KeyPair{Left: leftKeys[i], Right: rightKeys[i]}
	}
	return NewCondition(pairs...)
}

// Validate checks key ranges and that paired fields have the same type.
func (c *Condition) Validate(left, right *tuple.TupleDescription) error {
	for _, p := range c.pairs {
		lt, err := left.TypeAtIndex(p.Left)
		if err != nil {
			return dberror.Wrap(err, dberror.CodeInvalidArgument, "Validate", "JoinCondition")
		}
		rt, err := right.TypeAtIndex(p.Right)
		if err != nil {
			return dberror.Wrap(err, dberror.CodeInvalidArgument, "Validate", "JoinCondition")
		}
		if lt != rt {
			return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument,
				"join keys %d and %d have different types %s and %s", p.Left, p.Right, lt, rt)
		}
	}
	return nil
}

func (c *Condition) LeftKeys() []int {
	return c.leftKeys
}

func (c *Condition) RightKeys() []int {
	return c.rightKeys
}

// Compare orders a left tuple against a right tuple on the key pairs.
func (c *Condition) Compare(l, r *tuple.Tuple) (int, error) {
	return tuple.CompareOn(l, r, c.leftKeys, c.rightKeys)
}

// Matches reports whether l and r agree on every key pair.
func (c *Condition) Matches(l, r *tuple.Tuple) (bool, error) {
	return tuple.EqualOn(l, r, c.leftKeys, c.rightKeys)
}

// SameLeftKey reports whether two left tuples share a join key.
func (c *Condition) SameLeftKey(a, b *tuple.Tuple) (bool, error) {
	return tuple.EqualOn(a, b, c.leftKeys, c.leftKeys)
}

// SameRightKey reports whether two right tuples share a join key.
func (c *Condition) SameRightKey(a, b *tuple.Tuple) (bool, error) {
	return tuple.EqualOn(a, b, c.rightKeys, c.rightKeys)
}

func (c *Condition) String() string {
	parts := make([]string, len(c.pairs))
	for i, p := range c.pairs {
		parts[i] = fmt.Sprintf("L[%d]=R[%d]", p.Left, p.Right)
	}
	return strings.Join(parts, " AND ")
}
