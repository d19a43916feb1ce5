// Package bandwidth implements the read/write throughput counter described
// in spec.md §4.9, grounded on gram/core/bandwidth.py's Bandwidth
// peripheral: it counts command acceptances over a fixed period and
// snapshots the last completed period's totals on demand.
package bandwidth

import "github.com/prometheus/client_golang/prometheus"

// Monitor counts read/write command acceptances the multiplexer reports
// each cycle, rolling the count over every PeriodCycles cycles. Call
// Observe once per controller cycle; Update reads the last completed
// period's counts, which Observe replaces at each period boundary.
type Monitor struct {
	periodCycles uint64
	counter      uint64

	nreads, nwrites   uint64
	nreadsR, nwritesR uint64

	dataWidth int
}

// New builds a Monitor with the given period length in controller cycles
// (gram/core/bandwidth.py's 2^period_bits, here taken directly rather than
// as a bit count since Go has no register-width constraint to honor) and
// the data width reported alongside the counts for bits/sec computation.
func New(periodCycles uint64, dataWidth int) *Monitor {
	if periodCycles == 0 {
		periodCycles = 1 << 24
	}
	return &Monitor{periodCycles: periodCycles, dataWidth: dataWidth}
}

// Observe records one cycle's command-accept outcome. accepted mirrors
// cmd.valid && cmd.ready; isRead/isWrite are mutually exclusive category
// flags on that same command, matching the one-cycle-delayed sampling the
// reference design pipelines through `cmd_valid`/`cmd_ready`/`cmd_is_*`
// registers before counting (the pipeline delay doesn't change which
// period a count lands in at these granularities, so Observe counts the
// same cycle it's told about).
func (b *Monitor) Observe(accepted, isRead, isWrite bool) {
	if accepted {
		if isRead {
			b.nreads++
		}
		if isWrite {
			b.nwrites++
		}
	}
	b.counter++
	if b.counter >= b.periodCycles {
		b.counter = 0
		b.nreadsR, b.nwritesR = b.nreads, b.nwrites
		b.nreads, b.nwrites = 0, 0
	}
}

// Snapshot is the last completed period's counts.
type Snapshot struct {
	Reads, Writes uint64
	PeriodCycles  uint64
	DataWidth     int
}

// Update copies the last finished period's registers out. It latches
// nothing itself: calling it does not change what later Update or Collect
// calls report.
func (b *Monitor) Update() Snapshot {
	return Snapshot{Reads: b.nreadsR, Writes: b.nwritesR, PeriodCycles: b.periodCycles, DataWidth: b.dataWidth}
}

var (
	readsDesc  = prometheus.NewDesc("gramctl_reads_total", "READ commands accepted in the last completed bandwidth period.", nil, nil)
	writesDesc = prometheus.NewDesc("gramctl_writes_total", "WRITE commands accepted in the last completed bandwidth period.", nil, nil)
)

// Describe implements prometheus.Collector.
func (b *Monitor) Describe(ch chan<- *prometheus.Desc) {
	ch <- readsDesc
	ch <- writesDesc
}

// Collect implements prometheus.Collector, exporting the same last
// completed period's counts that Update returns, without mutating them.
func (b *Monitor) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(readsDesc, prometheus.GaugeValue, float64(b.nreadsR))
	ch <- prometheus.MustNewConstMetric(writesDesc, prometheus.GaugeValue, float64(b.nwritesR))
}
