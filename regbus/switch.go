package regbus

import "gramctl/dfi"

// Switch splices the register file's injected command onto phase 0 of the
// outgoing memory-side interface, keeping the decision entirely outside
// core state (spec.md §6 design note: "Model it as a two-way switch at the
// memory-side interface boundary, not as something that reaches into the
// core's state"). Every phase but 0 always passes the core's steered output
// through unmodified — injection firmware only ever drives a single phase's
// worth of command per cycle.
type Switch struct {
	NRanks int
}

// Apply returns the interface the memory sees this cycle: phase 0 replaced
// by the register file's command when File.InjectionSelected() and
// File.CommandIssue are both set, every other phase (and every other cycle)
// passed through from core unmodified. core is read, never mutated; the
// returned Interface is a fresh copy of phase 0 when injecting, and core
// itself otherwise.
func (s *Switch) Apply(core *dfi.Interface, file *File) *dfi.Interface {
	if !file.InjectionSelected() || !file.CommandIssue || len(core.Phases) == 0 {
		return core
	}

	out := &dfi.Interface{Phases: make([]dfi.Phase, len(core.Phases))}
	copy(out.Phases, core.Phases)
	// CS bit 0's assertion addresses rank 0 — the only rank single-rank
	// init firmware needs to target directly; broadcast commands
	// (reset_n, cke, odt) go through Control instead, which phase()
	// already fans out to every rank.
	out.Phases[0] = file.phase(0, s.NRanks)
	return out
}

// Capture copies the memory-side read-data return for phase 0 back into the
// register file's RdData, so firmware polling mode-register reads sees the
// result regardless of whether this cycle's read was core- or
// firmware-issued.
func (s *Switch) Capture(core *dfi.Interface, file *File) {
	if len(core.Phases) == 0 || !core.Phases[0].RdDataValid {
		return
	}
	copy(file.RdData, core.Phases[0].RdData)
}
