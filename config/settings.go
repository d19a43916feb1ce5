// Package config holds the construction-time, immutable settings that
// parameterize a gramctl controller: memory family (PhySettings), array
// geometry (GeomSettings), DRAM timing minimums (TimingSettings), and the
// controller's own policy knobs (ControllerSettings).
//
// None of these types are mutated after construction. A bad value is
// reported once, at construction, as an error — never as a panic and never
// as a silent clamp.
package config

import (
	"errors"
	"fmt"
)

// Memtype identifies the DRAM family. It determines the default burst
// length (hence the address alignment) and which timings are mandatory.
type Memtype int

const (
	SDR Memtype = iota
	DDR
	DDR2
	DDR3
	DDR4
	LPDDR
)

func (m Memtype) String() string {
	switch m {
	case SDR:
		return "SDR"
	case DDR:
		return "DDR"
	case DDR2:
		return "DDR2"
	case DDR3:
		return "DDR3"
	case DDR4:
		return "DDR4"
	case LPDDR:
		return "LPDDR"
	default:
		return "unknown"
	}
}

// BurstLength is the number of memory beats produced per column command.
func BurstLength(m Memtype) (int, error) {
	switch m {
	case SDR:
		return 1, nil
	case DDR, DDR2, LPDDR:
		return 4, nil
	case DDR3, DDR4:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedMemtype, m)
	}
}

// AddressMapping selects how a client's flat address splits into
// bank/row/column fields. Only ROW_BANK_COL is wired; BANK_ROW_COL is a
// named-but-rejected value (spec Open Question: reject unsupported mappings
// at construction rather than silently mis-wiring the crossbar).
type AddressMapping int

const (
	RowBankCol AddressMapping = iota
	BankRowCol
)

var (
	ErrUnsupportedMemtype         = errors.New("config: unsupported memory family")
	ErrMissingTiming              = errors.New("config: required timing value is unset")
	ErrUnsupportedAddressMapping  = errors.New("config: address mapping not implemented")
	ErrInvalidGeometry            = errors.New("config: invalid geometry")
	ErrInvalidPostponing          = errors.New("config: refresh postponing out of range")
)

// PhySettings describes the memory-side PHY this controller drives: data
// widths, phase count, rank count, and the CAS-latency-derived pipeline
// depths. It is immutable once returned by NewPhySettings.
type PhySettings struct {
	Memtype     Memtype
	DataBits    int
	DFIDataBits int
	NPhases     int
	NRanks      int

	CL  int
	CWL int

	ReadLatency  int
	WriteLatency int

	RDPhase    int
	WRPhase    int
	RDCmdPhase int
	WRCmdPhase int
}

// NewPhySettings validates and returns a PhySettings. CWL defaults to CL
// when zero, mirroring the reference design's `cwl = cl if cwl is None`.
func NewPhySettings(p PhySettings) (PhySettings, error) {
	if _, err := BurstLength(p.Memtype); err != nil {
		return PhySettings{}, err
	}
	if p.NPhases != 1 && p.NPhases != 2 && p.NPhases != 4 {
		return PhySettings{}, fmt.Errorf("%w: nphases must be 1, 2 or 4, got %d", ErrInvalidGeometry, p.NPhases)
	}
	if p.NRanks < 1 {
		return PhySettings{}, fmt.Errorf("%w: nranks must be >= 1", ErrInvalidGeometry)
	}
	if p.CL <= 0 {
		return PhySettings{}, fmt.Errorf("%w: cl", ErrMissingTiming)
	}
	if p.CWL == 0 {
		p.CWL = p.CL
	}
	if p.ReadLatency <= 0 || p.WriteLatency <= 0 {
		return PhySettings{}, fmt.Errorf("%w: read_latency/write_latency", ErrMissingTiming)
	}
	if p.RDPhase < 0 || p.RDPhase >= p.NPhases || p.WRPhase < 0 || p.WRPhase >= p.NPhases {
		return PhySettings{}, fmt.Errorf("%w: rdphase/wrphase out of range", ErrInvalidGeometry)
	}
	return p, nil
}

// CWLCycles returns ceil(cwl/nphases), the controller-cycle write latency
// used to size the tWTP and tWTR timing gates.
func (p PhySettings) CWLCycles() int {
	return (p.CWL + p.NPhases - 1) / p.NPhases
}

// GeomSettings describes the DRAM array geometry for one bank.
type GeomSettings struct {
	BankBits int
	RowBits  int
	ColBits  int
}

// AddressBits is the width of the shared row/column address bus, which
// must be wide enough to carry either field.
func (g GeomSettings) AddressBits() int {
	if g.RowBits > g.ColBits {
		return g.RowBits
	}
	return g.ColBits
}

func NewGeomSettings(g GeomSettings) (GeomSettings, error) {
	if g.BankBits <= 0 || g.RowBits <= 0 || g.ColBits <= 0 {
		return GeomSettings{}, fmt.Errorf("%w: bankbits/rowbits/colbits must be positive", ErrInvalidGeometry)
	}
	return g, nil
}

// TimingSettings holds the JEDEC timing minimums, in controller cycles.
// tFAW and tZQCS are optional (zero means "not enforced"); every other
// field is mandatory.
type TimingSettings struct {
	TRP  int
	TRCD int
	TWR  int
	TWTR int
	TREFI int
	TRFC int
	TFAW int // optional: 0 disables the rolling-window gate
	TCCD int
	TRRD int
	TRC  int
	TRAS int
	TZQCS int // optional: 0 disables ZQCS interleaving
}

func NewTimingSettings(t TimingSettings) (TimingSettings, error) {
	mandatory := map[string]int{
		"tRP": t.TRP, "tRCD": t.TRCD, "tWR": t.TWR, "tWTR": t.TWTR,
		"tREFI": t.TREFI, "tRFC": t.TRFC, "tCCD": t.TCCD, "tRRD": t.TRRD,
		"tRC": t.TRC, "tRAS": t.TRAS,
	}
	for name, v := range mandatory {
		if v <= 0 {
			return TimingSettings{}, fmt.Errorf("%w: %s", ErrMissingTiming, name)
		}
	}
	if t.TFAW < 0 || t.TZQCS < 0 {
		return TimingSettings{}, fmt.Errorf("%w: tFAW/tZQCS must be >= 0", ErrInvalidGeometry)
	}
	return t, nil
}

// ControllerSettings are the controller's own policy knobs, distinct from
// the DRAM's electrical timing requirements.
type ControllerSettings struct {
	CmdBufferDepth    int
	CmdBufferBuffered bool

	ReadTime  int
	WriteTime int

	WithRefresh      bool
	RefreshZQCSFreq  float64 // Hz; only consulted when TimingSettings.TZQCS != 0
	RefreshPostponing int

	WithAutoPrecharge bool

	AddressMapping AddressMapping

	// StallWarnCycles is a diagnostic-only threshold (not part of the DRAM
	// protocol): Controller.Tick logs a warning if a bank holds its
	// crossbar lock for longer than this many cycles. Zero disables it.
	StallWarnCycles int
}

// DefaultControllerSettings mirrors ControllerSettings() in the reference
// design: cmd_buffer_depth=8, read_time=32, write_time=16, with_refresh and
// with_auto_precharge both enabled, ROW_BANK_COL mapping.
func DefaultControllerSettings() ControllerSettings {
	return ControllerSettings{
		CmdBufferDepth:     8,
		CmdBufferBuffered:  false,
		ReadTime:           32,
		WriteTime:          16,
		WithRefresh:        true,
		RefreshZQCSFreq:    1.0,
		RefreshPostponing:  1,
		WithAutoPrecharge:  true,
		AddressMapping:     RowBankCol,
		StallWarnCycles:    0,
	}
}

func NewControllerSettings(c ControllerSettings) (ControllerSettings, error) {
	if c.AddressMapping != RowBankCol {
		return ControllerSettings{}, fmt.Errorf("%w: %v", ErrUnsupportedAddressMapping, c.AddressMapping)
	}
	if c.RefreshPostponing < 1 || c.RefreshPostponing > 8 {
		return ControllerSettings{}, fmt.Errorf("%w: postponing=%d (must be 1..8)", ErrInvalidPostponing, c.RefreshPostponing)
	}
	if c.CmdBufferDepth < 2 {
		return ControllerSettings{}, fmt.Errorf("%w: cmd_buffer_depth must be >= 2 for autoprecharge lookahead", ErrInvalidGeometry)
	}
	return c, nil
}
