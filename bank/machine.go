// Package bank implements the per-bank request state machine (spec.md
// §4.4), grounded on gram/core/bankmachine.py: it tracks one bank's open
// row, converts a client's queued requests into ACT/RD/WR/PRE commands,
// decides auto-precharge by peeking one request ahead, and arbitrates its
// own close against the refresh scheduler.
package bank

import (
	"gramctl/cmdreq"
	"gramctl/gate"
)

// State is the bank machine's FSM state (spec.md §4.4).
type State int

const (
	Regular State = iota
	Precharge
	Autoprecharge
	Activate
	tRPWait
	tRCDWait
	Refresh
)

// Request is one client access queued for this bank: a write flag and a
// column-aligned address (spec.md §3 "Client Request").
type Request struct {
	We   bool
	Addr uint32
}

// Config carries the fixed parameters a Machine needs at construction.
type Config struct {
	Index int // this machine's BA value (bank index, rank folded in by the caller)

	Slicer Slicer

	CmdBufferDepth    int
	WithAutoPrecharge bool

	TRP, TRCD, TWR, TCCD, TRC, TRAS int
	WriteLatencyCycles              int // ceil(cwl/nphases), precedes tWR+tCCD in the precharge gate
}

// TickInput is what the crossbar and multiplexer feed into a Machine each
// cycle.
type TickInput struct {
	ReqValid   bool // a client request is being offered into the lookahead FIFO
	Req        Request
	RefreshReq bool // the refresh scheduler wants this bank to close and grant
	CmdReady   bool // the multiplexer/chooser accepted this cycle's outgoing command
}

// TickOutput is what a Machine reports back each cycle.
type TickOutput struct {
	ReqReady   bool // lookahead FIFO accepted this cycle's offered request
	WDataReady bool // tell the crossbar to consume one write-data beat now
	RDataValid bool // tell the crossbar a read-data beat is available now
	Cmd        cmdreq.Endpoint
	RefreshGnt bool
	Lock       bool // bank has outstanding work; crossbar must not reroute this client elsewhere
}

// peeked holds the purely combinational part of one cycle's evaluation: it
// depends only on state entering the cycle (never on CmdReady), so the
// multiplexer can arbitrate over every bank's Peek before any bank commits
// its state for the cycle (spec.md §9 "combinational fixed point").
type peeked struct {
	cmd            cmdreq.Request
	valid          bool
	autoPrecharge  bool
	rowClose       bool
	rowOpen        bool
	rowColNAddrSel bool
}

// Machine is one bank's request state machine.
type Machine struct {
	cfg Config

	lookahead []Request // FIFO, depth cfg.CmdBufferDepth
	bufValid  bool
	buf       Request

	row       uint32
	rowOpened bool

	state      State
	subCounter int

	twtp *gate.Timing // write-to-precharge: write_latency + tWR + tCCD
	trc  *gate.Timing // activate-activate
	tras *gate.Timing // activate-precharge

	pend   peeked
	peeked bool
}

// New builds a Machine from cfg.
func New(cfg Config) *Machine {
	precharge := cfg.WriteLatencyCycles + cfg.TWR + cfg.TCCD
	return &Machine{
		cfg:  cfg,
		twtp: gate.NewTiming(precharge),
		trc:  gate.NewTiming(cfg.TRC),
		tras: gate.NewTiming(cfg.TRAS),
	}
}

// Locked reports whether this bank currently holds outstanding client work
// (a queued request or the one-deep peek buffer), using only state already
// fixed entering the cycle. The crossbar reads every bank's Locked() before
// routing any master's request, mirroring bankmachine.py's
// `req.lock.eq(cmd_buffer_lookahead.source.valid | cmd_buffer.source.valid)`
// — both are FIFO/buffer occupancy registers, never a function of this
// cycle's incoming request.
func (m *Machine) Locked() bool {
	return m.bufValid || len(m.lookahead) > 0
}

// RefreshGranted reports whether this bank would assert refresh_gnt this
// cycle, using only state fixed entering the cycle. bankmachine.py asserts
// it combinationally from the Refresh state alone (`twtpcon.ready`), never
// from cmd.ready, so the multiplexer can read every bank's grant before any
// bank commits — exactly like Locked().
func (m *Machine) RefreshGranted() bool {
	return m.state == Refresh && m.twtp.Ready()
}

// Peek computes this cycle's outgoing command without mutating any state.
// refreshReq is the scheduler's request-refresh signal; it must be passed
// again, unchanged, to Commit. Callers arbitrate over every bank's Peek
// result before calling any bank's Commit, matching the way the reference
// design's FSM next-state logic depends on cmd.ready while cmd.valid/a/ba
// never do.
func (m *Machine) Peek(refreshReq bool) cmdreq.Endpoint {
	var p peeked
	rowHit := m.bufValid && m.rowOpened && m.row == m.cfg.Slicer.Row(m.buf.Addr)

	switch m.state {
	case Regular:
		if !refreshReq && m.bufValid && m.rowOpened && rowHit {
			p.valid = true
			p.cmd.CAS = true
			if m.buf.We {
				p.cmd.IsWrite = true
				p.cmd.WE = true
			} else {
				p.cmd.IsRead = true
			}
			if m.cfg.WithAutoPrecharge && len(m.lookahead) > 0 &&
				m.cfg.Slicer.Row(m.lookahead[0].Addr) != m.cfg.Slicer.Row(m.buf.Addr) {
				p.autoPrecharge = true
			}
		}

	case Precharge:
		p.rowClose = true
		if m.twtp.Ready() && m.tras.Ready() {
			p.valid = true
			p.cmd.RAS = true
			p.cmd.WE = true
			p.cmd.IsCmd = true
		}

	case Autoprecharge:
		p.rowClose = true

	case Activate:
		if m.trc.Ready() {
			p.rowColNAddrSel = true
			p.rowOpen = true
			p.valid = true
			p.cmd.IsCmd = true
			p.cmd.RAS = true
		}

	case Refresh:
		p.rowClose = true
		// cmd.valid is intentionally never asserted in Refresh: the bank
		// only signals RefreshGnt, it never drives an outgoing command.

	case tRPWait, tRCDWait:
	}

	p.cmd.BA = uint32(m.cfg.Index)
	if p.rowColNAddrSel {
		p.cmd.A = m.cfg.Slicer.Row(m.buf.Addr)
	} else {
		a := m.cfg.Slicer.Col(m.buf.Addr)
		if p.autoPrecharge {
			a |= 1 << 10
		}
		p.cmd.A = a
	}

	m.pend = p
	m.peeked = true
	return cmdreq.Endpoint{Valid: p.valid, Request: p.cmd}
}

// Commit applies one cycle's register updates given the chooser's accept
// decision (cmdReady) and the crossbar's offered client request. Peek must
// have been called first this cycle with the same refreshReq.
func (m *Machine) Commit(in TickInput) TickOutput {
	if !m.peeked {
		panic("bank: Commit called without a preceding Peek")
	}
	m.peeked = false
	p := m.pend

	var out TickOutput
	out.Cmd = cmdreq.Endpoint{Valid: p.valid, Request: p.cmd}

	switch m.state {
	case Regular:
		if in.RefreshReq {
			m.state = Refresh
		} else if m.bufValid {
			if m.rowOpened {
				if p.valid { // row_hit path
					if m.buf.We {
						out.WDataReady = in.CmdReady
					} else {
						out.RDataValid = in.CmdReady
					}
					if in.CmdReady && p.autoPrecharge {
						m.state = Autoprecharge
					}
				} else {
					m.state = Precharge
				}
			} else {
				m.state = Activate
			}
		}

	case Precharge:
		if p.valid && in.CmdReady {
			m.state = tRPWait
			m.subCounter = m.cfg.TRP - 1
		}

	case Autoprecharge:
		if m.twtp.Ready() && m.tras.Ready() {
			m.state = tRPWait
			m.subCounter = m.cfg.TRP - 1
		}

	case Activate:
		if p.valid && in.CmdReady {
			m.state = tRCDWait
			m.subCounter = m.cfg.TRCD - 1
		}

	case Refresh:
		if m.twtp.Ready() {
			out.RefreshGnt = true
		}
		if !in.RefreshReq {
			m.state = Regular
		}

	case tRPWait:
		if m.subCounter <= 0 {
			m.state = Activate
		} else {
			m.subCounter--
		}

	case tRCDWait:
		if m.subCounter <= 0 {
			m.state = Regular
		} else {
			m.subCounter--
		}
	}

	cmdAccepted := p.valid && in.CmdReady
	m.twtp.Tick(cmdAccepted && p.cmd.IsWrite)
	m.trc.Tick(cmdAccepted && p.rowOpen)
	m.tras.Tick(cmdAccepted && p.rowOpen)

	if p.rowClose {
		m.rowOpened = false
	} else if p.rowOpen {
		m.rowOpened = true
		m.row = m.cfg.Slicer.Row(m.buf.Addr)
	}

	// Retire the peek buffer once the column command it backed has been
	// consumed by the crossbar (write data taken or read data delivered),
	// then refill it from the lookahead FIFO.
	if out.WDataReady || out.RDataValid {
		m.bufValid = false
	}
	if !m.bufValid && len(m.lookahead) > 0 {
		m.buf = m.lookahead[0]
		m.lookahead = m.lookahead[1:]
		m.bufValid = true
	}

	out.ReqReady = len(m.lookahead) < m.cfg.CmdBufferDepth
	if in.ReqValid && out.ReqReady {
		m.lookahead = append(m.lookahead, in.Req)
	}

	out.Lock = m.bufValid || len(m.lookahead) > 0
	return out
}
