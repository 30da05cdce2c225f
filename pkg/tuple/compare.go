package tuple

import (
	"github.com/cockroachdb/errors"
)

// CompareOn compares a and b restricted to key positions: field aKeys[i] of
// a is compared with field bKeys[i] of b, in order, and the first non-equal
// pair decides. Both key lists must have the same length.
func CompareOn(a, b *Tuple, aKeys, bKeys []int) (int, error) {
	if len(aKeys) != len(bKeys) {
		return 0, errors.AssertionFailedf("key arity mismatch: %d vs %d", len(aKeys), len(bKeys))
	}

	for i := range aKeys {
		af, err := a.GetField(aKeys[i])
		if err != nil {
			return 0, err
		}
		bf, err := b.GetField(bKeys[i])
		if err != nil {
			return 0, err
		}

		c, err := af.CompareTo(bf)
		if err != nil {
			return 0, errors.Wrapf(err, "comparing key %d", i)
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

// EqualOn reports whether a and b agree on the given key positions.
func EqualOn(a, b *Tuple, aKeys, bKeys []int) (bool, error) {
	c, err := CompareOn(a, b, aKeys, bKeys)
	return c == 0, err
}

// Equals reports whether two tuples have equal values in every field.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || len(t.fields) != len(other.fields) {
		return false
	}
	for i, f := range t.fields {
		o := other.fields[i]
		if f == nil || o == nil {
			if f != o {
				return false
			}
			continue
		}
		if !f.Equals(o) {
			return false
		}
	}
	return true
}

// AllFields returns the index list 0..n-1, the key list for whole-tuple comparison.
func AllFields(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}
