package join

import (
	"fmt"
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

type joinCase struct {
	strategy Strategy
	b        int
	capacity int
}

// build wires a join over fresh scans of left and right. capacity sets the
// scan, sort and output page capacities.
func build(t *testing.T, env *exectest.Env, c joinCase, cond *Condition, leftTD, rightTD *tuple.TupleDescription, left, right []*tuple.Tuple) iterator.PageIterator {
	t.Helper()
	l := env.Scan(t, leftTD, left, c.capacity)
	r := env.Scan(t, rightTD, right, c.capacity)

	switch c.strategy {
	case BlockNestedLoop:
		j, err := NewBlockNestedLoopJoin(env.QC, cond, l, r, c.b)
		require.NoError(t, err)
		return j.WithCapacity(c.capacity)
	case CrossProduct:
		j, err := NewCrossProductJoin(env.QC, l, r, c.b)
		require.NoError(t, err)
		return j.WithCapacity(c.capacity)
	default:
		j, err := NewSortMergeJoin(env.QC, cond, l, r, c.b, false)
		require.NoError(t, err)
		return j.WithCapacity(c.capacity).WithSortCapacity(c.capacity)
	}
}

// nestedLoopOracle is the obvious in-memory equi-join.
func nestedLoopOracle(t *testing.T, cond *Condition, left, right []*tuple.Tuple) []string {
	t.Helper()
	var out []*tuple.Tuple
	for _, l := range left {
		for _, r := range right {
			ok, err := cond.Matches(l, r)
			require.NoError(t, err)
			if ok {
				joined, err := tuple.CombineTuples(l, r)
				require.NoError(t, err)
				out = append(out, joined)
			}
		}
	}
	return sorted(exectest.Strings(out))
}

func sorted(s []string) []string {
	slices.Sort(s)
	return s
}

func randomPairs(t *testing.T, seed int64, n int, keys int64) []*tuple.Tuple {
	r := rand.New(rand.NewSource(seed))
	flat := make([]int64, 0, 2*n)
	for i := 0; i < n; i++ {
		flat = append(flat, r.Int63n(keys), int64(i))
	}
	return exectest.Pairs(t, flat...)
}

// =============================================================================
// Worked example
// =============================================================================

func TestJoin_SmallExample(t *testing.T) {
	left := func(t *testing.T) []*tuple.Tuple {
		return exectest.KeyVals(t, exectest.KV{K: 1, S: "a"}, exectest.KV{K: 1, S: "b"}, exectest.KV{K: 2, S: "c"})
	}
	right := func(t *testing.T) []*tuple.Tuple {
		return exectest.KeyVals(t, exectest.KV{K: 1, S: "x"}, exectest.KV{K: 1, S: "y"})
	}

	for _, s := range []Strategy{BlockNestedLoop, SortMerge} {
		t.Run(s.String(), func(t *testing.T) {
			env := exectest.NewEnv(t, page.CompressionNone)
			cond := onFirst(t)
			j := build(t, env, joinCase{strategy: s, b: 3, capacity: 2}, cond,
				exectest.KeyValDesc, exectest.KeyValDesc, left(t), right(t))

			require.NoError(t, j.Open())
			pages, err := iterator.CollectPages(j)
			require.NoError(t, err)
			require.Len(t, pages, 2)

			var got []*tuple.Tuple
			for _, p := range pages {
				got = append(got, p.Tuples()...)
			}
			require.NoError(t, j.Close())

			require.Equal(t, nestedLoopOracle(t, cond, left(t), right(t)), sorted(exectest.Strings(got)))
			require.Len(t, got, 4)
			require.Zero(t, env.TempFiles(t))
		})
	}
}

func TestSortMergeJoin_OutputIsKeyOrdered(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	left := exectest.KeyVals(t, exectest.KV{K: 1, S: "a"}, exectest.KV{K: 1, S: "b"}, exectest.KV{K: 2, S: "c"})
	right := exectest.KeyVals(t, exectest.KV{K: 1, S: "x"}, exectest.KV{K: 1, S: "y"})

	j := build(t, env, joinCase{strategy: SortMerge, b: 3, capacity: 2}, onFirst(t),
		exectest.KeyValDesc, exectest.KeyValDesc, left, right)
	got := exectest.Run(t, j)

	want := []*tuple.Tuple{}
	for _, l := range left[:2] {
		for _, r := range right {
			joined, err := tuple.CombineTuples(l, r)
			require.NoError(t, err)
			want = append(want, joined)
		}
	}
	require.Equal(t, exectest.Strings(want), exectest.Strings(got))
}

// =============================================================================
// Equivalence across strategies
// =============================================================================

func TestJoin_StrategiesAgree(t *testing.T) {
	for _, b := range []int{3, 4, 5, 6} {
		for _, capacity := range []int{1, 2, 10} {
			t.Run(fmt.Sprintf("B=%d/cap=%d", b, capacity), func(t *testing.T) {
				seed := int64(b*100 + capacity)
				left := randomPairs(t, seed, 37, 5)
				right := randomPairs(t, seed+1, 23, 5)
				cond := onFirst(t)
				want := nestedLoopOracle(t, cond, left, right)

				for _, s := range []Strategy{BlockNestedLoop, SortMerge} {
					env := exectest.NewEnv(t, page.CompressionSnappy)
					j := build(t, env, joinCase{strategy: s, b: b, capacity: capacity}, cond,
						exectest.PairDesc, exectest.PairDesc, left, right)
					got := exectest.Run(t, j)
					require.Equal(t, want, sorted(exectest.Strings(got)), s.String())
					require.Zero(t, env.TempFiles(t), s.String())
				}

				env := exectest.NewEnv(t, page.CompressionNone)
				cp := build(t, env, joinCase{strategy: CrossProduct, b: b, capacity: capacity}, nil,
					exectest.PairDesc, exectest.PairDesc, left, right)
				f, err := execution.NewFilterFunc(env.QC, func(tup *tuple.Tuple) (bool, error) {
					return tuple.EqualOn(tup, tup, []int{0}, []int{2})
				}, cp)
				require.NoError(t, err)
				got := exectest.Run(t, f)
				require.Equal(t, want, sorted(exectest.Strings(got)), "cross product + filter")
				require.Zero(t, env.TempFiles(t))
			})
		}
	}
}

func TestJoin_MultiKeyCondition(t *testing.T) {
	left := exectest.Pairs(t, 1, 1, 1, 2, 2, 1, 1, 1)
	right := exectest.Pairs(t, 1, 1, 2, 2, 1, 1, 1, 3)
	cond, err := NewCondition(KeyPair{Left: 0, Right: 0}, KeyPair{Left: 1, Right: 1})
	require.NoError(t, err)
	want := nestedLoopOracle(t, cond, left, right)
	require.Len(t, want, 4)

	for _, s := range []Strategy{BlockNestedLoop, SortMerge} {
		env := exectest.NewEnv(t, page.CompressionNone)
		j := build(t, env, joinCase{strategy: s, b: 3, capacity: 1}, cond,
			exectest.PairDesc, exectest.PairDesc, left, right)
		require.Equal(t, want, sorted(exectest.Strings(exectest.Run(t, j))), s.String())
	}
}

func TestCrossProduct_Cardinality(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionLZ4)
	left := randomPairs(t, 7, 11, 100)
	right := randomPairs(t, 8, 9, 100)

	j := build(t, env, joinCase{strategy: CrossProduct, b: 3, capacity: 4}, nil,
		exectest.PairDesc, exectest.PairDesc, left, right)
	got := exectest.Run(t, j)
	require.Len(t, got, 99)

	var want []*tuple.Tuple
	for _, l := range left {
		for _, r := range right {
			joined, err := tuple.CombineTuples(l, r)
			require.NoError(t, err)
			want = append(want, joined)
		}
	}
	require.Equal(t, sorted(exectest.Strings(want)), sorted(exectest.Strings(got)))
	require.Zero(t, env.TempFiles(t))
}

func TestSortMergeJoin_Descending(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionZstd)
	left := randomPairs(t, 21, 30, 6)
	right := randomPairs(t, 22, 20, 6)
	cond := onFirst(t)

	j, err := NewSortMergeJoin(env.QC, cond,
		env.Scan(t, exectest.PairDesc, left, 3),
		env.Scan(t, exectest.PairDesc, right, 3), 4, true)
	require.NoError(t, err)
	j.WithCapacity(3).WithSortCapacity(3)

	got := exectest.Run(t, j)
	require.Equal(t, nestedLoopOracle(t, cond, left, right), sorted(exectest.Strings(got)))
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, exectest.IntAt(t, got[i-1], 0), exectest.IntAt(t, got[i], 0))
	}
	require.Zero(t, env.TempFiles(t))
}

// =============================================================================
// Edge cases
// =============================================================================

func TestJoin_EmptyInputs(t *testing.T) {
	some := func(t *testing.T) []*tuple.Tuple { return exectest.Pairs(t, 1, 1, 2, 2) }

	for _, s := range []Strategy{BlockNestedLoop, CrossProduct, SortMerge} {
		for _, side := range []string{"left", "right", "both"} {
			t.Run(s.String()+"/"+side, func(t *testing.T) {
				env := exectest.NewEnv(t, page.CompressionNone)
				left, right := some(t), some(t)
				if side != "right" {
					left = nil
				}
				if side != "left" {
					right = nil
				}
				var cond *Condition
				if s != CrossProduct {
					cond = onFirst(t)
				}
				j := build(t, env, joinCase{strategy: s, b: 3, capacity: 2}, cond,
					exectest.PairDesc, exectest.PairDesc, left, right)
				require.Empty(t, exectest.Run(t, j))
				require.Zero(t, env.TempFiles(t))
			})
		}
	}
}

func TestJoin_InsufficientBuffers(t *testing.T) {
	for _, s := range []Strategy{BlockNestedLoop, CrossProduct, SortMerge} {
		t.Run(s.String(), func(t *testing.T) {
			env := exectest.NewEnv(t, page.CompressionNone)
			var cond *Condition
			if s != CrossProduct {
				cond = onFirst(t)
			}
			j := build(t, env, joinCase{strategy: s, b: 2, capacity: 2}, cond,
				exectest.PairDesc, exectest.PairDesc, exectest.Pairs(t, 1, 1), exectest.Pairs(t, 1, 1))

			err := j.Open()
			require.Error(t, err)
			require.True(t, dberror.HasCode(err, dberror.CodeInsufficientBuffers))
			require.NoError(t, j.Close())
			require.Zero(t, env.TempFiles(t))
		})
	}
}

func TestJoin_NextBeforeOpen(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	j := build(t, env, joinCase{strategy: SortMerge, b: 3, capacity: 2}, onFirst(t),
		exectest.PairDesc, exectest.PairDesc, nil, nil)
	_, err := j.Next()
	require.True(t, dberror.HasCode(err, dberror.CodeNotOpen))
}

func TestJoin_ConditionTypeMismatch(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	cond, err := OnKeys([]int{1}, []int{0})
	require.NoError(t, err)

	l := env.Scan(t, exectest.KeyValDesc, nil, 0)
	r := env.Scan(t, exectest.PairDesc, nil, 0)

	_, err = NewBlockNestedLoopJoin(env.QC, cond, l, r, 3)
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument))
	_, err = NewSortMergeJoin(env.QC, cond, l, r, 3, false)
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument))

	_, err = NewSortMergeJoin(env.QC, nil, l, r, 3, false)
	require.Error(t, err)
}

func TestNewJoin_Dispatch(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	scans := func() (iterator.PageIterator, iterator.PageIterator) {
		return env.Scan(t, exectest.PairDesc, exectest.Pairs(t, 1, 1, 2, 2), 0),
			env.Scan(t, exectest.PairDesc, exectest.Pairs(t, 2, 3, 1, 4), 0)
	}

	for _, s := range []Strategy{BlockNestedLoop, CrossProduct, SortMerge} {
		opts := Options{Strategy: s}
		if s != CrossProduct {
			opts.Condition = onFirst(t)
		}
		l, r := scans()
		j, err := NewJoin(env.QC, opts, l, r)
		require.NoError(t, err)
		require.Equal(t, s, j.Strategy())
		require.Equal(t, 4, j.GetTupleDesc().NumFields())

		want := 2
		if s == CrossProduct {
			want = 4
		}
		require.Len(t, exectest.Run(t, j), want, s.String())
	}

	l, r := scans()
	_, err := NewJoin(env.QC, Options{Strategy: CrossProduct, Condition: onFirst(t)}, l, r)
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument))

	_, err = NewJoin(env.QC, Options{Strategy: Strategy(42)}, l, r)
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument))

	_, err = NewJoin(env.QC, Options{Strategy: SortMerge, Condition: onFirst(t)}, nil, r)
	require.Error(t, err)

	require.Equal(t, "UnknownJoin", Strategy(42).String())
}

func TestBlockNestedLoopJoin_RescansRightOncePerBlock(t *testing.T) {
	env := exectest.NewEnv(t, page.CompressionNone)
	left := randomPairs(t, 3, 12, 3)
	right := randomPairs(t, 4, 6, 3)

	// 12 left tuples in pages of 2 with B=5 gives blocks of 3 pages: 2 blocks.
	l := env.Scan(t, exectest.PairDesc, left, 2)
	r := env.Scan(t, exectest.PairDesc, right, 2)
	j, err := NewBlockNestedLoopJoin(env.QC, onFirst(t), l, r, 5)
	require.NoError(t, err)

	got := exectest.Run(t, j.WithCapacity(2))
	require.Equal(t, nestedLoopOracle(t, onFirst(t), left, right), sorted(exectest.Strings(got)))
	require.Equal(t, 1, r.Opens(), "right input is materialized once")
}

func TestJoin_RejectsZeroCapacity(t *testing.T) {
	for _, s := range []Strategy{BlockNestedLoop, CrossProduct, SortMerge} {
		t.Run(s.String(), func(t *testing.T) {
			env := exectest.NewEnv(t, page.CompressionNone)
			var cond *Condition
			if s != CrossProduct {
				cond = onFirst(t)
			}
			j := build(t, env, joinCase{strategy: s, b: 3, capacity: 0}, cond,
				exectest.PairDesc, exectest.PairDesc, exectest.Pairs(t, 1, 1), exectest.Pairs(t, 1, 1))

			err := j.Open()
			require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument), "got %v", err)
			require.NoError(t, j.Close())
			require.Zero(t, env.TempFiles(t))
		})
	}
}
