package setops

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"qpexec/pkg/dberror"
	"qpexec/pkg/execution"
	"qpexec/pkg/execution/internal/exectest"
	"qpexec/pkg/iterator"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

func ints(t *testing.T, tuples []*tuple.Tuple) []int64 {
	out := make([]int64, len(tuples))
	for i, tup := range tuples {
		out[i] = exectest.IntAt(t, tup, 0)
	}
	return out
}

func TestDistinct_DuplicatesAcrossPageBoundaries(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	// Sorted with capacity 2 this is [1 1][2 2][2 2][3 3][3 4].
	scan := env.Scan(t, exectest.IntDesc, exectest.Ints(t, 3, 1, 2, 2, 2, 2, 1, 3, 3, 4), 2)

	d, err := NewDistinct(env.QC, scan, 3)
	require.NoError(t, err)
	d.WithCapacity(2)

	require.NoError(t, d.Open())
	pages, err := iterator.CollectPages(d)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	require.Len(t, pages, 2, "survivors are repacked into full pages")
	var got []*tuple.Tuple
	for _, p := range pages {
		got = append(got, p.Tuples()...)
	}
	require.Equal(t, []int64{1, 2, 3, 4}, ints(t, got))
	require.Zero(t, env.TempFiles(t))
}

func TestDistinct_MatchesSetSemantics(t *testing.T) {
	for _, capacity := range []int{1, 2, 10} {
		env := exectest.NewEnv(t, page.CompressionSnappy)
		r := rand.New(rand.NewSource(int64(capacity)))
		vals := make([]int64, 500)
		seen := map[int64]struct{}{}
		for i := range vals {
			vals[i] = r.Int63n(50)
			seen[vals[i]] = struct{}{}
		}
		want := make([]int64, 0, len(seen))
		for v := range seen {
			want = append(want, v)
		}
		slices.Sort(want)

		d, err := NewDistinct(env.QC, env.Scan(t, exectest.IntDesc, exectest.Ints(t, vals...), capacity), 3)
		require.NoError(t, err)
		require.Equal(t, want, ints(t, exectest.Run(t, d.WithCapacity(capacity))), "capacity %d", capacity)
		require.Zero(t, env.TempFiles(t))
	}
}

func TestDistinct_AllAttributes(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	rows := exectest.KeyVals(t,
		exectest.KV{K: 1, S: "a"}, exectest.KV{K: 1, S: "b"},
		exectest.KV{K: 1, S: "a"}, exectest.KV{K: 2, S: "a"})

	d, err := NewDistinct(env.QC, env.Scan(t, exectest.KeyValDesc, rows, 0), 4)
	require.NoError(t, err)
	require.Len(t, exectest.Run(t, d), 3)
}

func TestDistinct_OverProjection(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	rows := exectest.KeyVals(t,
		exectest.KV{K: 2, S: "a"}, exectest.KV{K: 1, S: "b"},
		exectest.KV{K: 2, S: "c"}, exectest.KV{K: 1, S: "d"})

	p, err := execution.NewProject(env.QC, []int{0}, env.Scan(t, exectest.KeyValDesc, rows, 1))
	require.NoError(t, err)
	d, err := NewDistinct(env.QC, p, 3)
	require.NoError(t, err)

	require.Equal(t, []int64{1, 2}, ints(t, exectest.Run(t, d)))
}

func TestDistinct_EmptyInput(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	d, err := NewDistinct(env.QC, env.Scan(t, exectest.IntDesc, nil, 0), 3)
	require.NoError(t, err)
	require.Empty(t, exectest.Run(t, d))
	require.Zero(t, env.TempFiles(t))
}

func TestDistinct_InsufficientBuffers(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	d, err := NewDistinct(env.QC, env.Scan(t, exectest.IntDesc, exectest.Ints(t, 1), 0), 2)
	require.NoError(t, err)

	err = d.Open()
	require.True(t, dberror.HasCode(err, dberror.CodeInsufficientBuffers))
	require.NoError(t, d.Close())
}

func TestDistinct_RejectsZeroCapacity(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	d, err := NewDistinct(env.QC, env.Scan(t, exectest.IntDesc, exectest.Ints(t, 1, 1), 0), 3)
	require.NoError(t, err)

	err = d.WithCapacity(0).Open()
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument), "got %v", err)
	require.NoError(t, d.Close())
	require.Zero(t, env.TempFiles(t))
}

func TestDistinct_NilChild(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	_, err := NewDistinct(env.QC, nil, 3)
	require.Error(t, err)
}
