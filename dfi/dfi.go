// Package dfi defines the memory-side command/data interface described in
// spec.md §6: one Phase record per sub-cycle phase, active-high in this
// module's internal representation (an implementation that must drive real
// active-low DRAM strobes renames fields at the PHY boundary — out of
// scope here, per spec.md §1's PHY non-goal).
package dfi

// Phase is one phase of the outgoing command/data interface. Every cycle,
// mux.Steerer drives nphases of these; the values are registered, so they
// appear on the boundary one controller cycle after being computed (spec.md
// §4.6: "Output is registered").
type Phase struct {
	Address uint32
	Bank    uint32

	CAS bool
	RAS bool
	WE  bool
	Act bool // DDR4 only; unused otherwise.

	// CS, CKE and ODT are one entry per rank.
	CS  []bool
	CKE []bool
	ODT []bool

	ResetN bool

	WrData     []byte // dfi_databits wide, conceptually; stored as a byte slice.
	WrDataEn   bool
	WrDataMask []byte // one bit per byte lane; 1 = suppress write (spec.md §4.7).

	RdDataEn    bool
	RdData      []byte // driven by the external memory-side collaborator.
	RdDataValid bool
}

// NewPhase allocates a Phase sized for nranks ranks and dataBits/8 data
// lanes.
func NewPhase(nranks, dataBits int) Phase {
	lanes := dataBits / 8
	return Phase{
		CS:         make([]bool, nranks),
		CKE:        make([]bool, nranks),
		ODT:        make([]bool, nranks),
		WrData:     make([]byte, lanes),
		WrDataMask: make([]byte, lanes),
		RdData:     make([]byte, lanes),
	}
}

// Interface is the full N-phase memory-side boundary.
type Interface struct {
	Phases []Phase
}

// NewInterface allocates an Interface with nphases phases, each sized for
// nranks ranks and dataBits/8 data lanes.
func NewInterface(nphases, nranks, dataBits int) *Interface {
	phases := make([]Phase, nphases)
	for i := range phases {
		phases[i] = NewPhase(nranks, dataBits)
	}
	return &Interface{Phases: phases}
}
