// Package gate provides the two timing primitives the bank machines and the
// multiplexer arm on every protocol interval: a one-shot interval tracker
// (Timing, spec.md §4.1 — tXXDController in the reference design) and a
// sliding four-activate window counter (Window, spec.md §4.2 —
// tFAWController).
package gate

// Timing tracks a single inter-command interval of N cycles. Arm it once;
// Ready reports false until N cycles have elapsed, then stays true until
// armed again. An N of zero means "no constraint" — Ready is always true,
// matching spec.md §4.1's "if N = 0 or N = None, ready is constantly high."
type Timing struct {
	n     int
	count int
	ready bool
}

// NewTiming returns a Timing gate for an N-cycle interval, starting ready:
// with nothing armed yet there is no interval to wait out.
func NewTiming(n int) *Timing {
	return &Timing{n: n, ready: true}
}

// Ready reports whether the interval has elapsed.
func (g *Timing) Ready() bool { return g.ready }

// Tick advances the gate by one cycle. arm restarts the interval
// (overlapping arms restart it, per spec.md §4.1); every other cycle the
// gate simply counts down toward ready.
func (g *Timing) Tick(arm bool) {
	if g.n <= 0 {
		return
	}
	if arm {
		g.count = g.n - 1
		g.ready = g.count == 0
		return
	}
	if g.count == 1 {
		g.ready = true
	}
	if g.count > 0 {
		g.count--
	}
}
