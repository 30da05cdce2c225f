package execution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"qpexec/pkg/dberror"
	"qpexec/pkg/execution/internal/exectest"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/types"
)

func TestFilter_RepacksSurvivors(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	var vals []int64
	for i := range 40 {
		vals = append(vals, int64(i))
	}
	scan := env.Scan(t, exectest.IntDesc, exectest.Ints(t, vals...), 3)

	f, err := NewFilter(env.QC, NewPredicate(0, types.GreaterThanOrEqual, types.NewIntField(30)), scan)
	require.NoError(t, err)

	out := exectest.Run(t, f)
	require.Len(t, out, 10)
	require.Equal(t, int64(30), exectest.IntAt(t, out[0], 0))
}

func TestFilter_NothingMatches(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	scan := env.Scan(t, exectest.IntDesc, exectest.Ints(t, 1, 2, 3), 1)

	f, err := NewFilter(env.QC, NewPredicate(0, types.Equals, types.NewIntField(9)), scan)
	require.NoError(t, err)
	require.Empty(t, exectest.Run(t, f))
}

func TestFilter_TypeMismatchSurfaces(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	scan := env.Scan(t, exectest.IntDesc, exectest.Ints(t, 1), 0)

	f, err := NewFilter(env.QC, NewPredicate(0, types.Equals, types.NewStringField("1")), scan)
	require.NoError(t, err)
	require.NoError(t, f.Open())
	defer f.Close()

	_, err = f.Next()
	require.ErrorIs(t, err, types.ErrIncomparable)
}

func TestFilter_NextBeforeOpen(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	f, err := NewFilter(env.QC, NewPredicate(0, types.Equals, types.NewIntField(1)),
		env.Scan(t, exectest.IntDesc, nil, 0))
	require.NoError(t, err)

	_, err = f.Next()
	require.True(t, dberror.HasCode(err, dberror.CodeNotOpen))
}

func TestProject_SelectsAndReorders(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	scan := env.Scan(t, exectest.PairDesc, exectest.Pairs(t, 1, 10, 2, 20), 1)

	p, err := NewProject(env.QC, []int{1, 0}, scan)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, p.GetTupleDesc().FieldNames)

	out := exectest.Run(t, p)
	require.Equal(t, []string{"10\t1", "20\t2"}, exectest.Strings(out))
}

func TestProject_InvalidField(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	_, err := NewProject(env.QC, []int{3}, env.Scan(t, exectest.PairDesc, nil, 0))
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument))

	_, err = NewProject(env.QC, nil, env.Scan(t, exectest.PairDesc, nil, 0))
	require.Error(t, err)
}
