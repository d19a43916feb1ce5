package mux

import (
	"gramctl/cmdreq"
	"gramctl/gate"
)

// fsmState is the Multiplexer's top-level read/write/refresh arbitration
// state (spec.md §4.7).
type fsmState int

const (
	stateRead fsmState = iota
	stateWrite
	stateRTW
	stateWTR
	stateRefresh
)

// antiStarvation tracks how long the current direction (read or write) has
// been favored, forcing a turnaround once the timeout elapses while the
// other direction has pending work (spec.md §4.7 "anti-starvation").
type antiStarvation struct {
	timeout int
	time    int
}

func newAntiStarvation(timeout int) *antiStarvation {
	a := &antiStarvation{timeout: timeout}
	if timeout > 0 {
		a.time = timeout - 1
	}
	return a
}

func (a *antiStarvation) MaxTime() bool {
	return a.timeout > 0 && a.time == 0
}

func (a *antiStarvation) Tick(enabled bool) {
	if a.timeout <= 0 {
		return
	}
	if !enabled {
		a.time = a.timeout - 1
		return
	}
	if !a.MaxTime() {
		a.time--
	}
}

// Config carries the timing and phase-routing parameters a Multiplexer
// needs at construction (spec.md §3 PhySettings/TimingSettings subset).
type Config struct {
	NBanks  int
	NPhases int

	TRRD, TFAW, TCCD, TWTR, TWR int
	WriteLatencyCycles          int
	ReadLatency                 int

	ReadTime, WriteTime int

	RDPhase, WRPhase, RDCmdPhase, WRCmdPhase int
}

// Multiplexer arbitrates bank-machine command streams against the refresh
// scheduler and steers the winner onto the DFI phases (spec.md §4.6–§4.7).
type Multiplexer struct {
	cfg Config

	chooseCmd *Chooser
	chooseReq *Chooser

	trrd *gate.Timing
	tfaw *gate.Window
	tccd *gate.Timing
	twtr *gate.Timing

	readTime  *antiStarvation
	writeTime *antiStarvation

	state      fsmState
	rtwCounter int
}

// New builds a Multiplexer from cfg.
func New(cfg Config) *Multiplexer {
	return &Multiplexer{
		cfg:       cfg,
		chooseCmd: NewChooser(cfg.NBanks),
		chooseReq: NewChooser(cfg.NBanks),
		trrd:      gate.NewTiming(cfg.TRRD),
		tfaw:      gate.NewWindow(cfg.TFAW),
		tccd:      gate.NewTiming(cfg.TCCD),
		twtr:      gate.NewTiming(cfg.TWTR + cfg.WriteLatencyCycles + cfg.TCCD),
		readTime:  newAntiStarvation(cfg.ReadTime),
		writeTime: newAntiStarvation(cfg.WriteTime),
	}
}

// TickInput is what the controller feeds into the Multiplexer each cycle.
type TickInput struct {
	// BankCmds is every bank machine's Peek() result this cycle, indexed by
	// bank.
	BankCmds []cmdreq.Endpoint
	// RefreshCmd is the refresh scheduler's command stream this cycle.
	RefreshCmd cmdreq.Endpoint
	// RefreshGnts is each bank's refresh_gnt output this cycle, indexed by
	// bank. Refresh proceeds only once every bank has granted.
	RefreshGnts []bool
}

// TickOutput is what the Multiplexer reports back each cycle.
type TickOutput struct {
	BankReady    []bool // per-bank accept decision, fed back as that bank's Commit CmdReady
	RefreshReady bool
	// Sel picks, for each DFI phase, which of {NOP, chosen cmd, chosen
	// req, refresh} should be steered onto that phase this cycle.
	Sel []Steer

	// ChosenCmd/ChosenReq are this cycle's SteerCmd/SteerReq source
	// endpoints, for the caller to assemble alongside the refresh
	// scheduler's endpoint into the [4]cmdreq.Endpoint array
	// mux.Steerer.Apply expects (spec.md §4.6: commands = [nop, choose_cmd,
	// choose_req, refresher]).
	ChosenCmd cmdreq.Endpoint
	ChosenReq cmdreq.Endpoint
}

// Tick advances the Multiplexer by one cycle.
func (mx *Multiplexer) Tick(in TickInput) TickOutput {
	n := mx.cfg.NBanks
	out := TickOutput{
		BankReady: make([]bool, n),
		Sel:       make([]Steer, mx.cfg.NPhases),
	}

	readAvailable, writeAvailable := false, false
	for _, ep := range in.BankCmds {
		if ep.Valid && ep.IsRead {
			readAvailable = true
		}
		if ep.Valid && ep.IsWrite {
			writeAvailable = true
		}
	}

	rasAllowed := mx.trrd.Ready() && mx.tfaw.Ready()
	casAllowed := mx.tccd.Ready()

	goToRefresh := len(in.RefreshGnts) > 0
	for _, g := range in.RefreshGnts {
		if !g {
			goToRefresh = false
			break
		}
	}

	singlePhase := mx.cfg.NPhases == 1

	var cmdRes, reqRes Result
	var cmdReady, reqReady bool

	switch mx.state {
	case stateRead, stateWrite:
		wantWrites := mx.state == stateWrite
		want := Want{Reads: !wantWrites, Writes: wantWrites}

		if singlePhase {
			// A single chooser stands in for both choose_cmd and
			// choose_req: it must also consider non-data commands and
			// activates (spec.md §4.6 nphases==1 special case).
			want.Cmds = true
			want.Activates = rasAllowed
			reqRes = mx.chooseReq.Peek(in.BankCmds, want)
			reqReady = casAllowed && (!reqRes.Cmd.IsActivate() || rasAllowed)
			mx.chooseReq.Advance(reqRes, reqReady)
		} else {
			cmdWant := Want{Cmds: true, Activates: rasAllowed}
			cmdRes = mx.chooseCmd.Peek(in.BankCmds, cmdWant)
			cmdReady = !cmdRes.Cmd.IsActivate() || rasAllowed
			mx.chooseCmd.Advance(cmdRes, cmdReady)

			reqReady = casAllowed
			reqRes = mx.chooseReq.Peek(in.BankCmds, want)
			mx.chooseReq.Advance(reqRes, reqReady)
		}

		out.ChosenCmd = cmdRes.Cmd
		out.ChosenCmd.Ready = cmdReady
		out.ChosenReq = reqRes.Cmd
		out.ChosenReq.Ready = reqReady

		if mx.state == stateRead {
			mx.readTime.Tick(true)
			mx.writeTime.Tick(false)
			if singlePhase {
				mx.setSel(out.Sel, stateRead, reqReady, reqRes.Cmd.Request)
			} else {
				mx.setSelMulti(out.Sel, stateRead, cmdReady, cmdRes.Cmd.Request, reqReady, reqRes.Cmd.Request)
			}
			if writeAvailable && (!readAvailable || mx.readTime.MaxTime()) {
				mx.state = stateRTW
				mx.rtwCounter = mx.cfg.ReadLatency - 1
			}
		} else {
			mx.writeTime.Tick(true)
			mx.readTime.Tick(false)
			if singlePhase {
				mx.setSel(out.Sel, stateWrite, reqReady, reqRes.Cmd.Request)
			} else {
				mx.setSelMulti(out.Sel, stateWrite, cmdReady, cmdRes.Cmd.Request, reqReady, reqRes.Cmd.Request)
			}
			if readAvailable && (!writeAvailable || mx.writeTime.MaxTime()) {
				mx.state = stateWTR
			}
		}

		if goToRefresh {
			mx.state = stateRefresh
		}

		// trrd/tfaw arm off choose_cmd's activate accept; in single-phase
		// mode choose_cmd and choose_req are the same instance.
		actArm := reqRes.Accept(reqReady) && reqRes.Cmd.IsActivate()
		if !singlePhase {
			actArm = cmdRes.Accept(cmdReady) && cmdRes.Cmd.IsActivate()
		}
		mx.trrd.Tick(actArm)
		mx.tfaw.Tick(actArm)
		mx.tccd.Tick(reqRes.Accept(reqReady) && (reqRes.Cmd.IsWrite || reqRes.Cmd.IsRead))
		mx.twtr.Tick(reqRes.Accept(reqReady) && reqRes.Cmd.IsWrite)

		for i := 0; i < n; i++ {
			out.BankReady[i] = mx.chooseReq.Accepted(i)
			if !singlePhase {
				out.BankReady[i] = out.BankReady[i] || mx.chooseCmd.Accepted(i)
			}
		}

	case stateRefresh:
		out.Sel[0] = SteerRefresh
		out.RefreshReady = true
		if in.RefreshCmd.Last {
			mx.state = stateRead
		}
		mx.readTime.Tick(false)
		mx.writeTime.Tick(false)

	case stateWTR:
		if mx.twtr.Ready() {
			mx.state = stateRead
		}
		mx.readTime.Tick(false)
		mx.writeTime.Tick(false)

	case stateRTW:
		if mx.rtwCounter <= 0 {
			mx.state = stateWrite
		} else {
			mx.rtwCounter--
		}
		mx.readTime.Tick(false)
		mx.writeTime.Tick(false)
	}

	return out
}

func (mx *Multiplexer) setSel(sel []Steer, dir fsmState, reqReady bool, req cmdreq.Request) {
	for i := range sel {
		sel[i] = SteerNOP
	}
	phase := mx.cfg.RDPhase
	if dir == stateWrite {
		phase = mx.cfg.WRPhase
	}
	if phase < len(sel) {
		sel[phase] = SteerReq
	}
}

func (mx *Multiplexer) setSelMulti(sel []Steer, dir fsmState, cmdReady bool, cmd cmdreq.Request, reqReady bool, req cmdreq.Request) {
	for i := range sel {
		sel[i] = SteerNOP
	}
	reqPhase, cmdPhase := mx.cfg.RDPhase, mx.cfg.RDCmdPhase
	if dir == stateWrite {
		reqPhase, cmdPhase = mx.cfg.WRPhase, mx.cfg.WRCmdPhase
	}
	if reqPhase < len(sel) {
		sel[reqPhase] = SteerReq
	}
	if cmdPhase < len(sel) && cmdPhase != reqPhase {
		sel[cmdPhase] = SteerCmd
	}
}
