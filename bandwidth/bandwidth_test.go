package bandwidth

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMonitor_CountsAcceptedCommandsByCategory(t *testing.T) {
	m := New(4, 32)

	m.Observe(true, true, false)  // read
	m.Observe(true, false, true)  // write
	m.Observe(false, true, false) // not accepted: ignored
	m.Observe(true, true, false)  // read, rolls the counter to the period boundary

	snap := m.Update()
	require.Equal(t, uint64(2), snap.Reads)
	require.Equal(t, uint64(1), snap.Writes)
	require.Equal(t, uint64(4), snap.PeriodCycles)
	require.Equal(t, 32, snap.DataWidth)
}

func TestMonitor_CurrentPeriodIsInvisibleUntilBoundary(t *testing.T) {
	m := New(4, 32)

	m.Observe(true, true, false)
	m.Observe(true, true, false)

	snap := m.Update()
	require.Zero(t, snap.Reads, "the in-progress period must not leak into the last-period snapshot")
}

func TestMonitor_DefaultsPeriodWhenZero(t *testing.T) {
	m := New(0, 32)
	require.Equal(t, uint64(1<<24), m.periodCycles)
}

func TestMonitor_CollectReportsLastSnapshot(t *testing.T) {
	m := New(2, 64)
	m.Observe(true, true, false)
	m.Observe(true, false, true)

	ch := make(chan prometheus.Metric, 2)
	m.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for mm := range ch {
		metrics = append(metrics, mm)
	}
	require.Len(t, metrics, 2)
}
