// Package regbus implements the register-bus injection surface described in
// spec.md §6: a small memory-mapped register file that lets external
// initialization firmware emit one controller-cycle command directly,
// bypassing the bank-machine stream, and a switch that splices that
// injected command onto phase 0 of the memory-side interface without the
// core (mux/bank) ever observing it.
package regbus

import "gramctl/dfi"

// Command bit positions within the 6-bit per-phase command register
// (spec.md §6): "encodes cs/we/cas/ras plus wrdata_en/rddata_en select
// bits".
const (
	CmdBitCS = iota
	CmdBitWE
	CmdBitCAS
	CmdBitRAS
	CmdBitWrDataEn
	CmdBitRdDataEn
)

// Control bit positions within the 4-bit control register (spec.md §6).
const (
	ControlBitInjectionSelect = iota // 1 = firmware pass-through, 0 = core pass-through
	ControlBitCKE
	ControlBitODT
	ControlBitResetN
)

// File holds the registers an external operator writes to drive
// initialization sequences (mode-register writes, ZQ calibration, reset
// sequencing) that the core's bank machines have no notion of.
type File struct {
	Command      uint8 // 6 bits, see CmdBit* constants
	CommandIssue bool  // strobe: emit one command this cycle using Command/Address/BankAddress
	Address      uint32
	BankAddress  uint32

	WrData []byte
	RdData []byte // populated by Switch.Capture from the memory-side read-data return

	Control uint8 // 4 bits, see ControlBit* constants
}

// NewFile allocates a File sized for dataBits/8 write/read-data lanes.
func NewFile(dataBits int) *File {
	lanes := dataBits / 8
	return &File{WrData: make([]byte, lanes), RdData: make([]byte, lanes)}
}

// InjectionSelected reports whether Control bit 0 routes phase 0 from this
// register file instead of the core's steered output.
func (f *File) InjectionSelected() bool {
	return f.Control&(1<<ControlBitInjectionSelect) != 0
}

// phase renders the register file's current contents as one dfi.Phase, for
// splicing onto phase 0 by Switch. rank selects which per-rank CS entry is
// asserted when the command's CS bit is set; every other rank's CS stays
// deasserted. CKE and ODT follow the control register on every rank.
func (f *File) phase(rank, nranks int) dfi.Phase {
	p := dfi.NewPhase(nranks, len(f.WrData)*8)
	p.Address = f.Address
	p.Bank = f.BankAddress
	p.CAS = f.Command&(1<<CmdBitCAS) != 0
	p.RAS = f.Command&(1<<CmdBitRAS) != 0
	p.WE = f.Command&(1<<CmdBitWE) != 0
	p.WrDataEn = f.Command&(1<<CmdBitWrDataEn) != 0
	p.RdDataEn = f.Command&(1<<CmdBitRdDataEn) != 0
	if f.Command&(1<<CmdBitCS) != 0 && rank >= 0 && rank < nranks {
		p.CS[rank] = true
	}
	for r := 0; r < nranks; r++ {
		p.CKE[r] = f.Control&(1<<ControlBitCKE) != 0
		p.ODT[r] = f.Control&(1<<ControlBitODT) != 0
	}
	p.ResetN = f.Control&(1<<ControlBitResetN) != 0
	copy(p.WrData, f.WrData)
	return p
}
