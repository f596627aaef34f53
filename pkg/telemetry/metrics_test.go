package telemetry

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestRecordEvent(t *testing.T) {
	ok := eventCounter.WithLabelValues("test event", "tag", "false")
	failed := eventCounter.WithLabelValues("test event", "tag", "true")
	before, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordEvent("test event", "tag", nil)
	RecordEvent("test event", "tag", nil)
	RecordEvent("test event", "tag", errors.New("boom"))

	require.Equal(t, before+2, testutil.ToFloat64(ok))
	require.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))

	RecordEventValue("test gauge", "tag", 42)
	require.Equal(t, 42.0, testutil.ToFloat64(eventGauge.WithLabelValues("test gauge", "tag")))
}

func TestInitializeMetrics_Twice(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NoError(t, InitializeMetrics(registry))
	require.NoError(t, InitializeMetrics(registry))

	RecordRequestDuration("GET", "/jobs", 10*time.Millisecond)
	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "scanclient_request_duration_seconds")
}
