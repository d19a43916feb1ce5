// Package controller wires together the per-bank state machines, the
// refresh scheduler, the multiplexer/steerer and the client crossbar into
// the single top-level Controller described by spec.md §2/§5, grounded on
// gram/core/controller.py: one Tick per controller cycle, computed in the
// dependency order spec.md §5 calls out (bank machines and refresher
// first, then chooser/steerer/multiplexer, then the crossbar datapath).
package controller

import (
	"fmt"

	"gramctl/bandwidth"
	"gramctl/bank"
	"gramctl/cmdreq"
	"gramctl/config"
	"gramctl/crossbar"
	"gramctl/dfi"
	"gramctl/mux"
	"gramctl/refresh"
	"gramctl/regbus"
	"gramctl/simlog"
)

// Controller is the assembled transaction engine: nbanks bank machines, a
// refresh scheduler, a multiplexer/steerer pair, a client-port crossbar,
// the register-bus injection surface, and a bandwidth monitor.
type Controller struct {
	banks     []*bank.Machine
	refresher *refresh.Scheduler
	mx        *mux.Multiplexer
	steerer   *mux.Steerer
	xbar      *crossbar.Crossbar
	regFile   *regbus.File
	regSwitch *regbus.Switch
	bw        *bandwidth.Monitor
	log       *simlog.Logger

	dfi *dfi.Interface

	nPorts      int
	rdPhase     int
	wrPhase     int
	dataLanes   int
	stallBudget int
	lockStreak  []int
}

// Config bundles a Controller's construction-time parameters. ClkFreqHz is
// carried separately from config.ControllerSettings because it is a board
// property, not a controller policy knob (mirrors the reference design's
// Controller(phy_settings, geom_settings, timing_settings, clk_freq, ...)
// constructor signature).
type Config struct {
	Phy       config.PhySettings
	Geom      config.GeomSettings
	Timing    config.TimingSettings
	Ctrl      config.ControllerSettings
	ClkFreqHz float64

	Ports []crossbar.Port

	// BandwidthPeriodCycles overrides bandwidth.Monitor's default
	// 2^24-cycle measurement period; zero keeps the default.
	BandwidthPeriodCycles uint64

	Logger *simlog.Logger
}

// New validates cfg and assembles a Controller. The only fallible
// constructor in this module; every error wraps a config sentinel.
func New(cfg Config) (*Controller, error) {
	ctrl, err := config.NewControllerSettings(cfg.Ctrl)
	if err != nil {
		return nil, err
	}
	phy, err := config.NewPhySettings(cfg.Phy)
	if err != nil {
		return nil, err
	}
	geom, err := config.NewGeomSettings(cfg.Geom)
	if err != nil {
		return nil, err
	}
	timing, err := config.NewTimingSettings(cfg.Timing)
	if err != nil {
		return nil, err
	}
	if len(cfg.Ports) == 0 {
		return nil, fmt.Errorf("%w: controller requires at least one client port", config.ErrInvalidGeometry)
	}

	burst, err := config.BurstLength(phy.Memtype)
	if err != nil {
		return nil, err
	}
	align := log2Ceil(burst)

	rankBits := log2Ceil(phy.NRanks)
	nbanks := phy.NRanks * (1 << uint(geom.BankBits))

	slicer := bank.Slicer{ColBits: geom.ColBits, Align: align}

	banks := make([]*bank.Machine, nbanks)
	for i := range banks {
		banks[i] = bank.New(bank.Config{
			Index:              i,
			Slicer:             slicer,
			CmdBufferDepth:     ctrl.CmdBufferDepth,
			WithAutoPrecharge:  ctrl.WithAutoPrecharge,
			TRP:                timing.TRP,
			TRCD:               timing.TRCD,
			TWR:                timing.TWR,
			TCCD:               timing.TCCD,
			TRC:                timing.TRC,
			TRAS:               timing.TRAS,
			WriteLatencyCycles: phy.CWLCycles(),
		})
	}

	var zqcsPeriod int
	if timing.TZQCS != 0 && ctrl.RefreshZQCSFreq > 0 {
		zqcsPeriod = int(cfg.ClkFreqHz / ctrl.RefreshZQCSFreq)
	}
	refresher := refresh.New(refresh.Config{
		WithRefresh: ctrl.WithRefresh,
		TREFI:       timing.TREFI,
		TRP:         timing.TRP,
		TRFC:        timing.TRFC,
		Postponing:  ctrl.RefreshPostponing,
		HasZQCS:     timing.TZQCS != 0,
		TZQCS:       timing.TZQCS,
		ZQCSPeriod:  zqcsPeriod,
	})

	mx := mux.New(mux.Config{
		NBanks:             nbanks,
		NPhases:            phy.NPhases,
		TRRD:               timing.TRRD,
		TFAW:               timing.TFAW,
		TCCD:               timing.TCCD,
		TWTR:               timing.TWTR,
		TWR:                timing.TWR,
		WriteLatencyCycles: phy.CWLCycles(),
		ReadLatency:        phy.ReadLatency,
		ReadTime:           ctrl.ReadTime,
		WriteTime:          ctrl.WriteTime,
		RDPhase:            phy.RDPhase,
		WRPhase:            phy.WRPhase,
		RDCmdPhase:         phy.RDCmdPhase,
		WRCmdPhase:         phy.WRCmdPhase,
	})

	xbar := crossbar.New(crossbar.Config{
		NBanks:       nbanks,
		NPorts:       len(cfg.Ports),
		Layout:       crossbar.AddressLayout{BankBits: geom.BankBits + rankBits, CBAShift: geom.ColBits - align},
		WriteLatency: phy.WriteLatency + 1,
		ReadLatency:  phy.ReadLatency + 1,
	})

	c := &Controller{
		banks:       banks,
		refresher:   refresher,
		mx:          mx,
		steerer:     mux.NewSteerer(phy.NRanks),
		xbar:        xbar,
		regFile:     regbus.NewFile(phy.DFIDataBits),
		regSwitch:   &regbus.Switch{NRanks: phy.NRanks},
		bw:          bandwidth.New(cfg.BandwidthPeriodCycles, phy.DataBits),
		log:         cfg.Logger,
		dfi:         dfi.NewInterface(phy.NPhases, phy.NRanks, phy.DFIDataBits),
		nPorts:      len(cfg.Ports),
		rdPhase:     phy.RDPhase,
		wrPhase:     phy.WRPhase,
		dataLanes:   phy.DFIDataBits / 8,
		stallBudget: ctrl.StallWarnCycles,
		lockStreak:  make([]int, nbanks),
	}
	return c, nil
}

// log2Ceil returns the smallest b such that 1<<b >= n, for n >= 1.
func log2Ceil(n int) int {
	b := 0
	for 1<<uint(b) < n {
		b++
	}
	return b
}

// RegisterFile exposes the register-bus injection surface for an external
// operator (or initialization firmware model) to read and write between
// Tick calls.
func (c *Controller) RegisterFile() *regbus.File { return c.regFile }

// BandwidthMonitor exposes the rolling read/write counter, e.g. to register
// it as a prometheus.Collector.
func (c *Controller) BandwidthMonitor() *bandwidth.Monitor { return c.bw }

// TickInput is what the client ports and memory-side collaborator feed
// into a Controller each cycle.
type TickInput struct {
	// Ports holds each client's offered command this cycle, indexed by
	// port. Must have exactly as many entries as the Ports slice passed to
	// New.
	Ports []crossbar.ClientCmd
	// WriteData/WriteMask are each port's offered write-data beat, sized to
	// one DFI phase's data width (phy.DFIDataBits/8 lanes) — this module
	// does not perform the serialization-ratio expansion a client port
	// with a wider native data_width would need; that conversion sits in
	// the native-port adapter spec.md §1 places out of core scope.
	// WriteMask is the port's byte-lane write enable (wdata.we): 1 writes
	// that lane. Tick drives its bitwise complement onto
	// dfi.Phase.WrDataMask, where 1 suppresses the write.
	WriteData [][]byte
	WriteMask [][]byte
}

// TickOutput is what a Controller reports back each cycle.
type TickOutput struct {
	// Ports is each client's handshake status this cycle, indexed by port.
	Ports []crossbar.PortOutput
	// ReadData[p] is non-nil exactly when Ports[p].RDataValid is set.
	ReadData [][]byte
	// DFI is the interface the memory-side collaborator observes this
	// cycle (phase 0 may be register-bus-injected rather than
	// core-steered; see regbus.Switch). The caller must populate
	// RdData/RdDataValid on the Controller's own interface (via DFI())
	// before the Tick call whose crossbar routing should see it.
	DFI *dfi.Interface
}

// DFI returns the Controller's own, persistently mutated memory-side
// interface. The caller writes RdData/RdDataValid into it (simulating the
// memory's response) before calling Tick; Tick then overwrites every other
// field for the next cycle's outgoing command.
func (c *Controller) DFI() *dfi.Interface { return c.dfi }

// Tick advances every child component by one cycle, in the dependency
// order spec.md §5 describes: bank machines and the refresher compute
// their command peek first (so the multiplexer can arbitrate over a
// combinationally consistent snapshot), then the multiplexer/steerer
// choose and place commands, then bank machines commit against the
// multiplexer's accept decision, then the crossbar's per-bank routing and
// data-handshake bookkeeping run, and finally the register-bus switch and
// bandwidth monitor observe the result.
func (c *Controller) Tick(in TickInput) TickOutput {
	nbanks := len(c.banks)

	refreshEp := c.refresher.Peek()

	bankCmds := make([]cmdreq.Endpoint, nbanks)
	for b, m := range c.banks {
		bankCmds[b] = m.Peek(refreshEp.Valid)
	}

	// Snapshot every bank's pre-commit lock/grant state before any bank's
	// Route call this cycle mutates that bank's own arbiter (spec.md §4.8;
	// gram/core/crossbar.py evaluates master_locked against registered
	// lock/grant state for every bank in parallel).
	refreshGnts := make([]bool, nbanks)
	lockedSnapshot := make([]bool, nbanks)
	grantSnapshot := make([]int, nbanks)
	for b, m := range c.banks {
		refreshGnts[b] = m.RefreshGranted()
		lockedSnapshot[b] = m.Locked()
		grantSnapshot[b] = c.xbar.BankGrant(b)
	}

	muxOut := c.mx.Tick(mux.TickInput{
		BankCmds:    bankCmds,
		RefreshCmd:  refreshEp,
		RefreshGnts: refreshGnts,
	})
	c.refresher.Commit(muxOut.RefreshReady)

	portCmds := in.Ports
	routes := make([]crossbar.BankRoute, nbanks)
	for b := 0; b < nbanks; b++ {
		masterLocked := make([]bool, c.nPorts)
		for ob := 0; ob < nbanks; ob++ {
			if ob == b || !lockedSnapshot[ob] {
				continue
			}
			if g := grantSnapshot[ob]; g >= 0 && g < c.nPorts {
				masterLocked[g] = true
			}
		}
		routes[b] = c.xbar.Route(b, portCmds, masterLocked, lockedSnapshot[b])
	}

	bankResults := make([]crossbar.BankResult, nbanks)
	for b, m := range c.banks {
		r := routes[b]
		out := m.Commit(bank.TickInput{
			ReqValid:   r.Valid,
			Req:        bank.Request{We: r.We, Addr: r.Addr},
			RefreshReq: refreshEp.Valid,
			CmdReady:   muxOut.BankReady[b],
		})
		bankResults[b] = crossbar.BankResult{ReqReady: out.ReqReady, WDataReady: out.WDataReady, RDataValid: out.RDataValid}
		c.trackStall(b, out.Lock)
	}

	portOutputs := c.xbar.Finalize(bankResults)

	wdata, wmask := crossbar.RouteWriteData(portOutputs, in.WriteData, in.WriteMask, c.dataLanes)
	copy(c.dfi.Phases[c.wrPhase].WrData, wdata)
	mask := c.dfi.Phases[c.wrPhase].WrDataMask
	for i := 0; i < len(mask) && i < len(wmask); i++ {
		mask[i] = ^wmask[i]
	}

	busData := crossbar.RouteReadData(c.dfi.Phases[c.rdPhase].RdData)
	readData := make([][]byte, c.nPorts)
	for p := 0; p < c.nPorts; p++ {
		if portOutputs[p].RDataValid {
			readData[p] = busData
		}
	}

	var sources [4]cmdreq.Endpoint
	sources[mux.SteerCmd] = muxOut.ChosenCmd
	sources[mux.SteerReq] = muxOut.ChosenReq
	sources[mux.SteerRefresh] = cmdreq.Endpoint{
		Valid:   refreshEp.Valid,
		Ready:   muxOut.RefreshReady,
		Last:    refreshEp.Last,
		Request: refreshEp.Request,
	}
	for i := range c.dfi.Phases {
		c.steerer.Apply(&c.dfi.Phases[i], sources, muxOut.Sel[i], i == 0)
	}

	out := c.regSwitch.Apply(c.dfi, c.regFile)
	c.regSwitch.Capture(out, c.regFile)

	c.bw.Observe(muxOut.ChosenReq.Valid && muxOut.ChosenReq.Ready, muxOut.ChosenReq.Request.IsRead, muxOut.ChosenReq.Request.IsWrite)

	return TickOutput{Ports: portOutputs, ReadData: readData, DFI: out}
}

func (c *Controller) trackStall(bankIdx int, locked bool) {
	if !locked {
		c.lockStreak[bankIdx] = 0
		return
	}
	c.lockStreak[bankIdx]++
	if c.stallBudget > 0 && c.lockStreak[bankIdx] == c.stallBudget+1 {
		c.log.StallWarning(bankIdx, c.lockStreak[bankIdx], c.stallBudget)
	}
}
