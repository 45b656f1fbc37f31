package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_String(t *testing.T) {
	m := Metrics{
		"a": 1,
		"b": 2,
		"c": 3,
	}

	require.Equal(
		t,
		` - a: 1
 - b: 2
 - c: 3
`,
		m.String(),
	)
}

func TestMetrics_Merge(t *testing.T) {
	m := Metrics{"a": 1, "b": 2}
	m.Add(Metrics{"a": 2, "c": 1})
	require.Equal(t, Metrics{"a": 3, "b": 2, "c": 1}, m)

	require.Equal(t, Metrics{"a": 10, "b": 2, "c": 1}, m.Assign(Metrics{"a": 10}))
	require.Equal(t, Metrics{"s/a": 3, "s/b": 2, "s/c": 1}, m.AddPrefix("s/"))
}

func TestRepository(t *testing.T) {
	r := NewRepository()
	r.AddMetric("input", 2)
	r.AddMetric("input", 3)
	r.SetMetric("size", 7)
	r.SetMetric("size", 4)

	require.Equal(t, Metrics{"input": 5, "size": 4}, r.Collect())
}

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(RunningTasksGauge)
	RunningTasksGauge.Inc()
	require.Equal(t, before+1, testutil.ToFloat64(RunningTasksGauge))
	RunningTasksGauge.Dec()
	require.Equal(t, before, testutil.ToFloat64(RunningTasksGauge))
}
