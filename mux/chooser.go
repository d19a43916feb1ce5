// Package mux implements the command chooser, phase steerer and top-level
// read/write/refresh arbitration FSM (spec.md §4.5–§4.7), grounded on
// gram/core/multiplexer.py's _CommandChooser, _Steerer and Multiplexer.
package mux

import (
	"gramctl/arb"
	"gramctl/cmdreq"
)

// Want filters which category of bank-machine request a Chooser considers
// eligible this cycle (spec.md §4.5).
type Want struct {
	Reads     bool
	Writes    bool
	Cmds      bool
	Activates bool
}

// Chooser is a round-robin picker over a fixed set of per-bank request
// streams, filtered by category. Two instances back the Multiplexer: one
// for column (read/write) requests, one for non-data (ACT/PRE) requests.
type Chooser struct {
	n       int
	arbiter *arb.RoundRobin
	// ready[i] reports whether bank i's request was the one accepted this
	// cycle, fed back so the bank machine can retire its lookahead entry.
	ready []bool
	// lastValids caches Peek's eligibility mask for the paired Advance call.
	lastValids uint32
}

// NewChooser builds a Chooser over n bank-machine request streams.
func NewChooser(n int) *Chooser {
	return &Chooser{n: n, arbiter: arb.New(n), ready: make([]bool, n)}
}

// Grant returns the index of the currently arbitrated bank.
func (c *Chooser) Grant() int { return c.arbiter.Grant() }

// eligible reports whether requests[i] matches want's category filter.
func eligible(r cmdreq.Request, want Want) bool {
	isAct := r.IsActivate()
	command := r.IsCmd && want.Cmds && (!isAct || want.Activates)
	readMatch := r.IsRead == want.Reads
	writeMatch := r.IsWrite == want.Writes
	return command || (readMatch && writeMatch)
}

// Result is what Peek returns: the request selected this cycle (zero
// value with Valid=false if nothing was eligible). Which bank an accept
// consumed is reported by Accepted after Advance.
type Result struct {
	Cmd cmdreq.Endpoint
}

// Peek evaluates the current grant against endpoints without touching the
// arbiter's state: the selection for this cycle is fixed by the grant
// register entering the cycle, never by this cycle's ready (spec.md §4.5 —
// only the *next* grant depends on ready). Call Advance afterward, exactly
// once, with the real ready decision.
func (c *Chooser) Peek(endpoints []cmdreq.Endpoint, want Want) Result {
	var valids uint32
	for i, ep := range endpoints {
		if ep.Valid && eligible(ep.Request, want) {
			valids |= 1 << uint(i)
		}
	}
	c.lastValids = valids

	grant := c.arbiter.Grant()
	var res Result
	if valids&(1<<uint(grant)) != 0 {
		res.Cmd.Valid = true
		res.Cmd.Request = endpoints[grant].Request
	}
	return res
}

// Advance commits this cycle's accept decision: it records which bank (if
// any) was consumed and rotates the round robin when the output handshake
// is idle or consumed (spec.md §4.5). Must be called once per cycle, after
// Peek, with the same endpoints' eligibility already captured by Peek.
func (c *Chooser) Advance(res Result, ready bool) {
	grant := c.arbiter.Grant()
	for i := range c.ready {
		c.ready[i] = res.Cmd.Valid && ready && i == grant
	}
	stb := ready || !res.Cmd.Valid
	c.arbiter.Advance(stb, c.lastValids)
}

// Accepted reports whether bank i's request was the one chosen and
// consumed on the last Advance call.
func (c *Chooser) Accepted(i int) bool { return c.ready[i] }

// Accept mirrors _CommandChooser.accept(): the chosen request was valid and
// consumed.
func (r Result) Accept(ready bool) bool { return r.Cmd.Valid && ready }
