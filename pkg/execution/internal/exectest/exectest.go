// Package exectest builds query contexts, relations and scans for operator tests.
package exectest

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"qpexec/pkg/config"
	"qpexec/pkg/execution/scanner"
	"qpexec/pkg/iterator"
	"qpexec/pkg/logging"
	"qpexec/pkg/metrics"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
	"qpexec/pkg/types"
)

// Env is a query context over an in-memory filesystem.
type Env struct {
	QC       *registry.QueryContext
	Fs       afero.Fs
	Registry *prometheus.Registry
	Metrics  *metrics.ExecMetrics
}

// NewEnv builds an isolated query context. The context is closed when the
// test ends.
func NewEnv(t testing.TB, compression page.Compression) *Env {
	t.Helper()
	memFs := afero.NewMemMapFs()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := config.Default()
	cfg.TempDir = "/spill"
	cfg.Compression = string(compression)

	qc, err := registry.NewQueryContext(cfg,
		registry.WithFs(memFs),
		registry.WithMetrics(m),
		registry.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = qc.Close() })

	return &Env{QC: qc, Fs: memFs, Registry: reg, Metrics: m}
}

// TempFiles counts regular files left under the query's temp directory.
func (e *Env) TempFiles(t testing.TB) int {
	t.Helper()
	n := 0
	exists, err := afero.DirExists(e.Fs, e.QC.TempStore().Dir())
	require.NoError(t, err)
	if !exists {
		return 0
	}
	require.NoError(t, afero.Walk(e.Fs, e.QC.TempStore().Dir(), func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	}))
	return n
}

// IntDesc is a single INT column "v".
var IntDesc = tuple.MustTupleDesc([]types.Type{types.IntType}, []string{"v"})

// KeyValDesc is (INT k, STRING s).
var KeyValDesc = tuple.MustTupleDesc([]types.Type{types.IntType, types.StringType}, []string{"k", "s"})

// PairDesc is (INT a, INT b).
var PairDesc = tuple.MustTupleDesc([]types.Type{types.IntType, types.IntType}, []string{"a", "b"})

// Ints builds single-column tuples.
func Ints(t testing.TB, vals ...int64) []*tuple.Tuple {
	t.Helper()
	out := make([]*tuple.Tuple, len(vals))
	for i, v := range vals {
		tup, err := tuple.FromFields(IntDesc, types.NewIntField(v))
		require.NoError(t, err)
		out[i] = tup
	}
	return out
}

// KV is one (k, s) row.
type KV struct {
	K int64
	S string
}

// KeyVals builds (k, s) tuples.
func KeyVals(t testing.TB, rows ...KV) []*tuple.Tuple {
	t.Helper()
	out := make([]*tuple.Tuple, len(rows))
	for i, r := range rows {
		tup, err := tuple.FromFields(KeyValDesc, types.NewIntField(r.K), types.NewStringField(r.S))
		require.NoError(t, err)
		out[i] = tup
	}
	return out
}

// Pairs builds (a, b) tuples from a flat list a0, b0, a1, b1, ...
func Pairs(t testing.TB, flat ...int64) []*tuple.Tuple {
	t.Helper()
	require.Zero(t, len(flat)%2)
	out := make([]*tuple.Tuple, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		tup, err := tuple.FromFields(PairDesc, types.NewIntField(flat[i]), types.NewIntField(flat[i+1]))
		require.NoError(t, err)
		out = append(out, tup)
	}
	return out
}

// Scan wraps tuples in a RelationScan with the given page capacity
// (0 keeps the capacity derived from the page size).
func (e *Env) Scan(t testing.TB, td *tuple.TupleDescription, tuples []*tuple.Tuple, capacity int) *scanner.RelationScan {
	t.Helper()
	s, err := scanner.NewRelationScan(e.QC, td, tuples)
	require.NoError(t, err)
	if capacity > 0 {
		s.WithCapacity(capacity)
	}
	return s
}

// Run opens it, drains every page, checks page invariants and closes it.
func Run(t testing.TB, it iterator.PageIterator) []*tuple.Tuple {
	t.Helper()
	require.NoError(t, it.Open())

	var out []*tuple.Tuple
	for {
		b, err := it.Next()
		require.NoError(t, err)
		if b == nil {
			break
		}
		require.False(t, b.IsEmpty(), "operators must not return empty pages")
		require.LessOrEqual(t, b.Size(), b.Capacity())
		out = append(out, b.Tuples()...)
	}

	b, err := it.Next()
	require.NoError(t, err)
	require.Nil(t, b, "end marker must repeat")

	require.NoError(t, it.Close())
	require.NoError(t, it.Close(), "close must be idempotent")
	return out
}

// Strings renders tuples for order-insensitive or exact comparisons.
func Strings(tuples []*tuple.Tuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.String()
	}
	return out
}

// IntAt extracts an INT field.
func IntAt(t testing.TB, tup *tuple.Tuple, i int) int64 {
	t.Helper()
	f, err := tup.GetField(i)
	require.NoError(t, err)
	v, ok := f.(*types.IntField)
	require.True(t, ok, fmt.Sprintf("field %d is %s", i, f.Type()))
	return v.Value
}
