package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("warmup").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("warmup").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("warmup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("warmup", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("warmup")))
}

func TestAddWarmedIgnoresEmptyRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddWarmed(0)
	m.AddWarmed(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.warmed))

	var nilMetrics *Metrics
	nilMetrics.AddWarmed(2)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
