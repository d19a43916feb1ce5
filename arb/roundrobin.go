// Package arb provides the round-robin arbiter shared by the command
// chooser (mux) and the per-bank client arbiters (crossbar).
package arb

import "math/bits"

// RoundRobin picks one requester out of n, advancing the grant only when
// told to (Advance's enable pulse). This mirrors gram/compat.py's
// RoundRobin, which gates rotation behind an externally-driven `stb`
// strobe rather than rotating every cycle — the chooser only wants to
// re-arbitrate once the currently granted request has been consumed or
// was never valid (spec.md §4.5: "Arbitration advances iff the output
// handshake is either idle or consumed").
//
// Selection within Advance uses a trailing-zero bit scan rather than a
// linear loop, the same bitmap idiom the teacher's out-of-order scheduler
// uses to find the next ready reservation station in one step.
type RoundRobin struct {
	n     int
	grant int
}

// New returns a RoundRobin over n requesters, granted to requester 0
// initially (matches the reference design's zero-reset grant register).
func New(n int) *RoundRobin {
	if n <= 0 {
		panic("arb: n must be positive")
	}
	return &RoundRobin{n: n}
}

// Grant returns the index currently granted access.
func (r *RoundRobin) Grant() int { return r.grant }

// Advance re-evaluates the grant when enable is set, scanning cyclically
// starting just after the current grant and wrapping around, stopping at
// the first requester whose bit is set in requests. If no bit is set the
// grant is left unchanged (there is nothing to rotate to).
//
// requests is a bitmask, bit i set meaning requester i is asking for the
// bus this cycle — exactly gram/compat.py's `request` signal.
func (r *RoundRobin) Advance(enable bool, requests uint32) {
	if !enable || requests == 0 {
		return
	}
	// Rotate requests so bit 0 of the rotated mask corresponds to
	// requester (grant+1) mod n; math/bits.TrailingZeros finds the first
	// set bit in one step, then we translate back to an absolute index.
	rotated := rotateRight(requests, r.n, r.grant+1)
	if rotated == 0 {
		return
	}
	offset := bits.TrailingZeros32(rotated)
	r.grant = (r.grant + 1 + offset) % r.n
}

// rotateRight rotates the low n bits of v right by k positions (mod n),
// so that bit k of v becomes bit 0 of the result.
func rotateRight(v uint32, n, k int) uint32 {
	mask := uint32(1)<<uint(n) - 1
	v &= mask
	k %= n
	if k < 0 {
		k += n
	}
	return ((v >> uint(k)) | (v << uint(n-k))) & mask
}
