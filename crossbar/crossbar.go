package crossbar

import "gramctl/arb"

// Mode restricts which of a port's three streams are wired, mirroring
// gramNativePort's mode tag (spec.md §4.8, §6 "Client-port interface").
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeBoth
)

// Port is one client's construction-time identity. The crossbar holds no
// per-port queue: a port's command/data state lives with its owner, and is
// offered fresh each cycle via ClientCmd/WriteBeat.
type Port struct {
	ID   int
	Mode Mode
}

// ClientCmd is one port's offered command this cycle.
type ClientCmd struct {
	Valid bool
	We    bool
	Addr  uint32
}

// BankRoute is the crossbar's routing decision for one bank this cycle:
// which master (if any) was selected to drive that bank's request input.
type BankRoute struct {
	Valid  bool
	We     bool
	Addr   uint32 // bank-stripped row/column address
	Master int    // port index, or -1 if no master was routed
}

// BankResult is what the controller reads back from that bank's
// bank.Machine.Commit call, fed back into Finalize.
type BankResult struct {
	ReqReady   bool
	WDataReady bool
	RDataValid bool
}

// PortOutput is what a client port observes this cycle.
type PortOutput struct {
	CmdReady   bool
	WDataReady bool
	RDataValid bool
}

// Config carries the crossbar's fixed sizing and latency parameters.
type Config struct {
	NBanks int
	NPorts int

	Layout AddressLayout

	// WriteLatency/ReadLatency are the per-port delay-line depths, set to
	// phy.write_latency+1 / phy.read_latency+1 (spec.md §4.8). Finalize reads
	// each line right after pushing into it, so a bank's
	// wdata_ready/rdata_valid pulse reaches the port depth-1 cycles later:
	// phy.write_latency / phy.read_latency controller cycles.
	WriteLatency int
	ReadLatency  int
}

// Crossbar multiplexes NPorts client ports onto NBanks bank machines.
type Crossbar struct {
	cfg Config

	bankArb []*arb.RoundRobin

	wdataDelay []*delayLine // one per port
	rdataDelay []*delayLine // one per port

	// grantedMaster[b] is the master index bank b routed to this cycle (or
	// -1), cached between Route and Finalize so Finalize doesn't need to
	// re-derive it from BankRoute.
	grantedMaster []int
}

// New builds a Crossbar over cfg.NPorts client ports and cfg.NBanks banks.
func New(cfg Config) *Crossbar {
	cb := &Crossbar{
		cfg:           cfg,
		bankArb:       make([]*arb.RoundRobin, cfg.NBanks),
		wdataDelay:    make([]*delayLine, cfg.NPorts),
		rdataDelay:    make([]*delayLine, cfg.NPorts),
		grantedMaster: make([]int, cfg.NBanks),
	}
	for b := range cb.bankArb {
		cb.bankArb[b] = arb.New(cfg.NPorts)
	}
	for p := 0; p < cfg.NPorts; p++ {
		cb.wdataDelay[p] = newDelayLine(cfg.WriteLatency)
		cb.rdataDelay[p] = newDelayLine(cfg.ReadLatency)
	}
	return cb
}

// Route decides bank b's request for this cycle: which of cmds is
// addressed to b, not locked elsewhere, and currently granted by b's own
// round-robin arbiter. locked[m] reports whether master m is mid-
// transaction with a DIFFERENT bank (spec.md §4.8's cross-bank lock rule);
// the caller computes it from every OTHER bank's Locked() pre-commit
// snapshot and that bank's last-granted master, since within one cycle
// "other bank locked and granted to me" must reflect state fixed before
// this cycle's routing, never a bank's own just-computed decision.
//
// bankLocked is THIS bank's own pre-commit Locked() snapshot: while it
// holds, the arbiter must not re-arbitrate (gram/core/crossbar.py's
// `arbiters_en.eq(~bank.valid & ~bank.lock)`), keeping the same master
// routed to it across every beat of a multi-column transaction.
func (cb *Crossbar) Route(b int, cmds []ClientCmd, locked []bool, bankLocked bool) BankRoute {
	var requests uint32
	for m, cmd := range cmds {
		selected := cb.cfg.Layout.Bank(cmd.Addr) == uint32(b) && !locked[m]
		if selected && cmd.Valid {
			requests |= 1 << uint(m)
		}
	}

	grant := cb.bankArb[b].Grant()
	route := BankRoute{Master: -1}
	if requests&(1<<uint(grant)) != 0 {
		route.Valid = true
		route.We = cmds[grant].We
		route.Addr = cb.cfg.Layout.RowCol(cmds[grant].Addr)
		route.Master = grant
	}
	cb.grantedMaster[b] = route.Master

	cb.bankArb[b].Advance(!route.Valid && !bankLocked, requests)
	return route
}

// GrantedMaster returns the master bank b routed to on the last Route
// call, or -1. Used by Finalize.
func (cb *Crossbar) GrantedMaster(b int) int { return cb.grantedMaster[b] }

// BankGrant returns bank b's round-robin arbiter's raw grant register,
// regardless of whether that master is currently requesting. gram/core/
// crossbar.py's cross-bank lock test reads exactly this ("other_bank.lock &
// (other_arbiter.grant == nm)"), not the gated per-cycle routing decision —
// a bank can hold a master locked even on a cycle where that master isn't
// asserting a fresh request. The caller must snapshot every bank's
// BankGrant and Locked() before calling Route on ANY bank this cycle, since
// Route's paired Advance call mutates that same bank's own grant register.
func (cb *Crossbar) BankGrant(b int) int { return cb.bankArb[b].Grant() }

// Finalize folds every bank's Commit result back into per-port handshakes,
// advancing the write/read delay lines exactly once per port per cycle.
// Must be called once per cycle, after every bank's Route and Commit.
// CmdReady goes to the master routed to each bank this cycle; the data
// handshakes go to the master each bank's arbiter currently grants (the
// arbiter does not move while the bank holds buffered requests), so they
// reach the client even on cycles when it offers no new request.
func (cb *Crossbar) Finalize(results []BankResult) []PortOutput {
	out := make([]PortOutput, cb.cfg.NPorts)

	wdataReady := make([]bool, cb.cfg.NPorts)
	rdataValid := make([]bool, cb.cfg.NPorts)
	for b, res := range results {
		if m := cb.grantedMaster[b]; m >= 0 {
			out[m].CmdReady = out[m].CmdReady || res.ReqReady
		}
		g := cb.bankArb[b].Grant()
		wdataReady[g] = wdataReady[g] || res.WDataReady
		rdataValid[g] = rdataValid[g] || res.RDataValid
	}

	for p := 0; p < cb.cfg.NPorts; p++ {
		cb.wdataDelay[p].Push(wdataReady[p])
		cb.rdataDelay[p].Push(rdataValid[p])
		out[p].WDataReady = cb.wdataDelay[p].Out()
		out[p].RDataValid = cb.rdataDelay[p].Out()
	}
	return out
}

// RouteWriteData selects which port's write-data beat rides the shared
// write bus this cycle: a one-hot selection over this cycle's delayed
// wdata-ready pulses (the same signals Finalize just computed), falling
// back to an all-zero beat when zero or more than one port is ready
// (spec.md §4.8: "a one-hot selection with an explicit zero default").
func RouteWriteData(outs []PortOutput, data [][]byte, we [][]byte, laneWidth int) ([]byte, []byte) {
	selected := -1
	for p, o := range outs {
		if o.WDataReady {
			if selected >= 0 {
				return make([]byte, laneWidth), make([]byte, laneWidth)
			}
			selected = p
		}
	}
	if selected < 0 {
		return make([]byte, laneWidth), make([]byte, laneWidth)
	}
	return data[selected], we[selected]
}

// RouteReadData broadcasts the shared read-data bus to every port; each
// port's own RDataValid (from Finalize) tells it whether this beat is
// actually theirs.
func RouteReadData(busData []byte) []byte {
	return busData
}
