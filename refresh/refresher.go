// Package refresh implements the periodic refresh scheduler (spec.md §4.3),
// grounded on gram/core/refresher.py: a periodic tREFI timer, a postponer
// that batches up to P pending refreshes, a mini-sequencer that drives the
// PRE-all/REF pair (repeated P times), and an optional ZQCS calibration
// tail.
package refresh

import "gramctl/cmdreq"

const prechargeAllRow = 1 << 10

// periodTimer is a free-running down counter that pulses Done every period
// cycles while wait holds, mirroring RefreshTimer's "wait & ~done" gating
// (wait and done collapse to the same condition when wired to the internal
// done output, so the single boolean below is what both call sites need).
type periodTimer struct {
	period int
	count  int
}

func newPeriodTimer(period int) *periodTimer {
	return &periodTimer{period: period, count: period - 1}
}

func (t *periodTimer) Done() bool { return t.count == 0 }

func (t *periodTimer) Tick(wait bool) {
	done := t.Done()
	if wait && !done {
		t.count--
		return
	}
	t.count = t.period - 1
}

// postponer aggregates up to n refresh ticks before raising a single
// request, letting the scheduler batch refreshes during read/write bursts.
type postponer struct {
	n     int
	count int
	reqO  bool
}

func newPostponer(n int) *postponer {
	return &postponer{n: n, count: n - 1}
}

func (p *postponer) Req() bool { return p.reqO }

func (p *postponer) Tick(reqI bool) {
	// reqO defaults low every cycle, mirroring the reference design's sync
	// reset on req_o: without it, once the batch fires once it latches high
	// and stateIdle re-enters stateWaitGrant on every subsequent visit,
	// refreshing back-to-back forever instead of waiting out a fresh
	// period. Resetting here makes it a one-cycle pulse, consumed by the
	// very next Commit call's wantsRefresh read.
	p.reqO = false
	if !reqI {
		return
	}
	if p.count == 0 {
		p.count = p.n - 1
		p.reqO = true
		return
	}
	p.count--
}

// sequence is a small cycle-indexed timeline: at cycle 0 it drives the
// precharge-all command, and at each subsequent configured offset it drives
// the next command in the burst, finishing with an all-zero NOP and done=1.
// Each command is driven only on the cycle of its own offset; every cycle
// in between drives an all-zero request.
// This is the Go shape of RefreshExecuter/ZQCSExecuter's Timeline helper.
type step struct {
	at  int
	cmd cmdreq.Request
	done bool
}

type sequence struct {
	steps   []step
	running bool
	cycle   int
	idx     int
	out     cmdreq.Request
	done    bool
}

func newSequence(steps []step) *sequence {
	return &sequence{steps: steps}
}

func (s *sequence) Start() {
	s.running = true
	s.cycle = 0
	s.idx = 0
	s.done = false
	s.apply()
}

func (s *sequence) Done() bool { return s.done }
func (s *sequence) Request() cmdreq.Request { return s.out }

func (s *sequence) apply() {
	s.out = cmdreq.Request{}
	for s.idx < len(s.steps) && s.steps[s.idx].at <= s.cycle {
		s.out = s.steps[s.idx].cmd
		s.done = s.steps[s.idx].done
		s.idx++
	}
}

// Tick advances the sequence by one cycle; start restarts it from cycle 0,
// exactly as RefreshExecuter's `tl.trigger.eq(self.start)` does.
func (s *sequence) Tick(start bool) {
	if start {
		s.Start()
		return
	}
	if !s.running || s.done {
		return
	}
	s.cycle++
	s.apply()
}

func refreshSequence(trp, trfc int) *sequence {
	return newSequence([]step{
		{at: 0, cmd: cmdreq.Request{A: prechargeAllRow, RAS: true, WE: true, IsCmd: true}},
		{at: trp, cmd: cmdreq.Request{CAS: true, RAS: true, IsCmd: true}},
		{at: trp + trfc, cmd: cmdreq.Request{IsCmd: true}, done: true},
	})
}

func zqcsSequence(trp, tzqcs int) *sequence {
	return newSequence([]step{
		{at: 0, cmd: cmdreq.Request{A: prechargeAllRow, RAS: true, WE: true, IsCmd: true}},
		{at: trp, cmd: cmdreq.Request{WE: true, IsCmd: true}},
		{at: trp + tzqcs, cmd: cmdreq.Request{IsCmd: true}, done: true},
	})
}

// multiSequencer runs a refresh sequence postponing times in a row, matching
// RefreshSequencer's count register that re-triggers the executer on its
// own done pulse until the batch is exhausted.
type multiSequencer struct {
	exec       *sequence
	postponing int
	count      int
	started    bool
}

func newMultiSequencer(exec *sequence, postponing int) *multiSequencer {
	return &multiSequencer{exec: exec, postponing: postponing, count: postponing - 1}
}

func (m *multiSequencer) Done() bool {
	return m.exec.Done() && m.count == 0
}

func (m *multiSequencer) Request() cmdreq.Request { return m.exec.Request() }

func (m *multiSequencer) Tick(start bool) {
	execStart := start || (m.exec.Done() && m.count != 0)
	if start {
		m.count = m.postponing - 1
	} else if m.exec.Done() && m.count != 0 {
		m.count--
	}
	m.exec.Tick(execStart)
}

// fsmState is the Scheduler's top-level refresh FSM (spec.md §4.3).
type fsmState int

const (
	stateIdle fsmState = iota
	stateWaitGrant
	stateDoRefresh
	stateDoCalibration
)

// Scheduler drives the periodic refresh/ZQCS command stream described in
// spec.md §4.3. It is advanced once per controller cycle via Tick.
type Scheduler struct {
	withRefresh bool
	hasZQCS     bool

	timer     *periodTimer
	post      *postponer
	seq       *multiSequencer
	zqcsTimer *periodTimer
	zqcs      *sequence

	state fsmState
}

// Config carries the timing knobs a Scheduler needs; all values are in
// controller cycles except ZQCSPeriod which is in controller cycles too
// (typically derived from clk_freq / zqcs_freq by the caller).
type Config struct {
	WithRefresh bool
	TREFI       int
	TRP         int
	TRFC        int
	Postponing  int
	// HasZQCS enables the calibration tail; when false TZQCS/ZQCSPeriod
	// are ignored, mirroring settings.timing.tZQCS is None.
	HasZQCS    bool
	TZQCS      int
	ZQCSPeriod int
}

// New builds a Scheduler from cfg. Postponing must be in [1, 8] (spec.md
// §9 open-question note, enforced upstream by config.NewControllerSettings).
func New(cfg Config) *Scheduler {
	postponing := cfg.Postponing
	if postponing < 1 {
		postponing = 1
	}
	s := &Scheduler{
		withRefresh: cfg.WithRefresh,
		hasZQCS:     cfg.HasZQCS,
		timer:       newPeriodTimer(cfg.TREFI),
		post:        newPostponer(postponing),
		seq:         newMultiSequencer(refreshSequence(cfg.TRP, cfg.TRFC), postponing),
	}
	if cfg.HasZQCS {
		s.zqcsTimer = newPeriodTimer(cfg.ZQCSPeriod)
		s.zqcs = zqcsSequence(cfg.TRP, cfg.TZQCS)
	}
	return s
}

// Peek computes this cycle's command-stream endpoint (Valid/Last/Request)
// without mutating any state. Every branch but the wait-grant one is
// already independent of the downstream ready signal — mirroring
// bm.refresh_req.eq(refresher.cmd.valid), which reads only .valid, never
// .ready. The wait-grant branch asserts Valid regardless of ready too; its
// Request only becomes non-zero once Commit starts the sequence, but
// nothing downstream consumes Request content during that same transition
// cycle (the multiplexer is still steering Read/Write this cycle and only
// reaches the refresh steering state, which reads Request, on a later
// cycle once the sequence is already running). Call Commit afterward,
// exactly once, with the real ready decision.
func (s *Scheduler) Peek() cmdreq.Endpoint {
	wantsZQCS := s.hasZQCS && s.zqcsTimer.Done()

	var out cmdreq.Endpoint
	switch s.state {
	case stateWaitGrant:
		out.Valid = true

	case stateDoRefresh:
		if s.seq.Done() {
			if wantsZQCS {
				out.Valid = true
			} else {
				out.Last = true
			}
		} else {
			out.Valid = true
			out.Request = s.seq.Request()
		}

	case stateDoCalibration:
		if s.zqcs.Done() {
			out.Last = true
		} else {
			out.Valid = true
			out.Request = s.zqcs.Request()
		}
	}

	if out.Valid || out.Last {
		out.Request.IsCmd = true
	}
	return out
}

// Commit applies one cycle's register updates given the multiplexer's
// accept decision (ready). Peek must have been called first this cycle.
//
// Each branch below either starts a mini-sequencer (exactly one Tick(true)
// call the cycle the FSM enters its state) or advances an already-running
// one (Tick(false)); never both in the same cycle for the same sequencer.
func (s *Scheduler) Commit(ready bool) {
	wantsRefresh := s.withRefresh && s.post.Req()
	wantsZQCS := s.hasZQCS && s.zqcsTimer.Done()

	switch s.state {
	case stateIdle:
		if wantsRefresh {
			s.state = stateWaitGrant
		}

	case stateWaitGrant:
		if ready {
			s.seq.Tick(true)
			s.state = stateDoRefresh
		}

	case stateDoRefresh:
		if s.seq.Done() {
			if wantsZQCS {
				s.zqcs.Tick(true)
				s.state = stateDoCalibration
			} else {
				s.state = stateIdle
			}
		} else {
			s.seq.Tick(false)
		}

	case stateDoCalibration:
		if s.zqcs.Done() {
			s.state = stateIdle
		} else {
			s.zqcs.Tick(false)
		}
	}

	s.timer.Tick(!s.timer.Done())
	s.post.Tick(s.timer.Done())
	if s.hasZQCS {
		s.zqcsTimer.Tick(!s.zqcs.Done())
	}
}
