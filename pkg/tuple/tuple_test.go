package tuple

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"qpexec/pkg/types"
)

func intStrDesc(t *testing.T) *TupleDescription {
	t.Helper()
	td, err := NewTupleDesc([]types.Type{types.IntType, types.StringType}, []string{"id", "name"})
	require.NoError(t, err)
	return td
}

func mk(t *testing.T, td *TupleDescription, id int64, name string) *Tuple {
	t.Helper()
	tup, err := FromFields(td, types.NewIntField(id), types.NewStringField(name))
	require.NoError(t, err)
	return tup
}

func TestNewTupleDesc_Validation(t *testing.T) {
	_, err := NewTupleDesc(nil, nil)
	require.Error(t, err)

	_, err = NewTupleDesc([]types.Type{types.IntType}, []string{"a", "b"})
	require.Error(t, err)
}

func TestTupleDescription_CombineAndSize(t *testing.T) {
	left := intStrDesc(t)
	right := MustTupleDesc([]types.Type{types.IntType}, nil)

	combined := Combine(left, right)
	require.Equal(t, 3, combined.NumFields())
	require.Equal(t, []string{"id", "name", ""}, combined.FieldNames)
	require.Equal(t, left.GetSize()+right.GetSize(), combined.GetSize())
	require.Equal(t, uint32(8+4+types.StringMaxSize+8), combined.GetSize())
}

func TestTupleDescription_Project(t *testing.T) {
	td := intStrDesc(t)
	p, err := td.Project([]int{1})
	require.NoError(t, err)
	require.Equal(t, []types.Type{types.StringType}, p.Types)
	require.Equal(t, []string{"name"}, p.FieldNames)

	_, err = td.Project([]int{5})
	require.Error(t, err)
}

func TestTuple_SetFieldTypeMismatch(t *testing.T) {
	tup := NewTuple(intStrDesc(t))
	require.Error(t, tup.SetField(0, types.NewStringField("x")))
	require.Error(t, tup.SetField(2, types.NewIntField(1)))
}

func TestCombineTuples(t *testing.T) {
	td := intStrDesc(t)
	a, b := mk(t, td, 1, "a"), mk(t, td, 1, "x")

	c, err := CombineTuples(a, b)
	require.NoError(t, err)
	require.Equal(t, 4, c.NumFields())
	require.Equal(t, "1\ta\t1\tx", c.String())

	_, err = CombineTuples(a, nil)
	require.Error(t, err)
}

// =============================================================================
// Key comparison
// =============================================================================

func TestCompareOn(t *testing.T) {
	td := intStrDesc(t)

	tests := []struct {
		name       string
		a, b       *Tuple
		aKeys, bKs []int
		want       int
	}{
		{"first key decides", mk(t, td, 1, "z"), mk(t, td, 2, "a"), []int{0, 1}, []int{0, 1}, -1},
		{"second key breaks tie", mk(t, td, 1, "b"), mk(t, td, 1, "a"), []int{0, 1}, []int{0, 1}, 1},
		{"equal on keys", mk(t, td, 3, "q"), mk(t, td, 3, "r"), []int{0}, []int{0}, 0},
		{"cross positions", mk(t, td, 5, "5"), mk(t, td, 9, "5"), []int{1}, []int{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareOn(tt.a, tt.b, tt.aKeys, tt.bKs)
			require.NoError(t, err)
			switch {
			case tt.want < 0:
				require.Negative(t, got)
			case tt.want > 0:
				require.Positive(t, got)
			default:
				require.Zero(t, got)
			}
		})
	}
}

func TestCompareOn_ArityMismatch(t *testing.T) {
	td := intStrDesc(t)
	_, err := CompareOn(mk(t, td, 1, "a"), mk(t, td, 1, "a"), []int{0}, []int{0, 1})
	require.Error(t, err)
}

func TestTuple_Equals(t *testing.T) {
	td := intStrDesc(t)
	require.True(t, mk(t, td, 1, "a").Equals(mk(t, td, 1, "a")))
	require.False(t, mk(t, td, 1, "a").Equals(mk(t, td, 1, "b")))
}

func TestTuple_SerializeParse(t *testing.T) {
	td := intStrDesc(t)
	orig := mk(t, td, -7, "seven")

	var buf bytes.Buffer
	require.NoError(t, orig.Serialize(&buf))
	require.Equal(t, int(td.GetSize()), buf.Len())

	got, err := Parse(&buf, td)
	require.NoError(t, err)
	require.True(t, orig.Equals(got))

	require.Error(t, NewTuple(td).Serialize(&buf))
}
