package regbus

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gramctl/dfi"
)

func coreInterface(nranks int) *dfi.Interface {
	iface := dfi.NewInterface(2, nranks, 32)
	iface.Phases[0].CAS = true // mark the core's own command, to distinguish from injection
	return iface
}

func TestSwitch_PassesThroughWhenNotSelected(t *testing.T) {
	s := &Switch{NRanks: 1}
	f := NewFile(32)
	core := coreInterface(1)

	out := s.Apply(core, f)
	require.Same(t, core, out, "core output must pass through unmodified when injection isn't selected")
}

func TestSwitch_PassesThroughWhenSelectedButNotIssuing(t *testing.T) {
	s := &Switch{NRanks: 1}
	f := NewFile(32)
	f.Control = 1 << ControlBitInjectionSelect
	core := coreInterface(1)

	out := s.Apply(core, f)
	require.Same(t, core, out, "control bit 0 alone, without command_issue, must not splice in a command")
}

func TestSwitch_SplicesPhaseZeroOnIssue(t *testing.T) {
	s := &Switch{NRanks: 2}
	f := NewFile(32)
	f.Control = 1 << ControlBitInjectionSelect
	f.CommandIssue = true
	f.Command = 1 << CmdBitWE
	f.Address = 0x55
	core := coreInterface(2)

	out := s.Apply(core, f)
	require.NotSame(t, core, out)
	require.True(t, out.Phases[0].WE)
	require.False(t, out.Phases[0].CAS, "injected phase must replace the core's command, not merge with it")
	require.Equal(t, uint32(0x55), out.Phases[0].Address)
	require.Equal(t, core.Phases[1], out.Phases[1], "phases other than 0 must be untouched")
}

func TestSwitch_CaptureCopiesReadDataIntoRegisterFile(t *testing.T) {
	s := &Switch{NRanks: 1}
	f := NewFile(16)
	core := coreInterface(1)
	core.Phases[0].RdDataValid = true
	core.Phases[0].RdData = []byte{0xDE, 0xAD}

	s.Capture(core, f)
	require.Equal(t, []byte{0xDE, 0xAD}, f.RdData)
}

func TestSwitch_CaptureIgnoresInvalidReadData(t *testing.T) {
	s := &Switch{NRanks: 1}
	f := NewFile(16)
	core := coreInterface(1)

	s.Capture(core, f)
	require.Equal(t, []byte{0x00, 0x00}, f.RdData)
}
