package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExecMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunCreated("ExternalSort")
	m.RunCreated("ExternalSort")
	m.RunRemoved("ExternalSort")
	m.PageSpilled("ExternalSort", 100)
	m.PageSpilled("ExternalSort", 50)
	m.MergePass("ExternalSort")

	require.Equal(t, 2.0, testutil.ToFloat64(m.RunsCreated.WithLabelValues("ExternalSort")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LiveRuns))
	require.Equal(t, 150.0, testutil.ToFloat64(m.BytesSpilled.WithLabelValues("ExternalSort")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.MergePasses.WithLabelValues("ExternalSort")))
}

func TestExecMetrics_NilSafe(t *testing.T) {
	var m *ExecMetrics
	m.RunCreated("x")
	m.PageRead("x")
	m.Emitted("x", 3)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Emitted("SortMergeJoin", 4)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `qpexec_operator_tuples_emitted_total{operator="SortMergeJoin"} 4`), body)
}
