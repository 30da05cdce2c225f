package registry

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"qpexec/pkg/config"
	"qpexec/pkg/logging"
	"qpexec/pkg/metrics"
	"qpexec/pkg/tuple"
	"qpexec/pkg/types"
)

func newTestContext(t *testing.T, fs afero.Fs, m *metrics.ExecMetrics) *QueryContext {
	t.Helper()
	cfg := config.Default()
	cfg.TempDir = "/spill"
	qc, err := NewQueryContext(cfg, WithFs(fs), WithMetrics(m), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return qc
}

func TestNewQueryContext_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NumBuffers = 1
	_, err := NewQueryContext(cfg, WithFs(afero.NewMemMapFs()))
	require.Error(t, err)
}

func TestQueryContext_CloseRemovesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	qc := newTestContext(t, fs, metrics.New(prometheus.NewRegistry()))

	td := tuple.MustTupleDesc([]types.Type{types.IntType}, nil)
	w, err := qc.TempStore().CreateRun("leak", "test", td)
	require.NoError(t, err)
	_, err = w.Close()
	require.NoError(t, err)

	dir := qc.TempStore().Dir()
	require.NoError(t, qc.Close())

	exists, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestQueryContext_ConcurrentQueriesDoNotCollide(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := metrics.New(prometheus.NewRegistry())
	td := tuple.MustTupleDesc([]types.Type{types.IntType}, nil)

	var (
		mu    sync.Mutex
		paths = make(map[string]bool)
	)

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			qc, err := NewQueryContext(&config.ExecConfig{
				PageSize: 4096, NumBuffers: 3, TempDir: "/spill", Compression: "none",
			}, WithFs(fs), WithMetrics(m), WithLogger(logging.Discard()))
			if err != nil {
				return err
			}
			defer qc.Close()

			for range 10 {
				w, err := qc.TempStore().CreateRun("run", "test", td)
				if err != nil {
					return err
				}
				key := qc.TempStore().Dir() + "/" + w.Run().Name
				mu.Lock()
				if paths[key] {
					mu.Unlock()
					t.Errorf("duplicate run path %s", key)
					return nil
				}
				paths[key] = true
				mu.Unlock()
				if _, err := w.Close(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, paths, 80)
}
