package regbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFile_InjectionSelectedReadsControlBit0(t *testing.T) {
	f := NewFile(32)
	require.False(t, f.InjectionSelected())
	f.Control = 1 << ControlBitInjectionSelect
	require.True(t, f.InjectionSelected())
}

func TestFile_PhaseEncodesCommandAndControlBits(t *testing.T) {
	f := NewFile(32)
	f.Command = 1<<CmdBitCS | 1<<CmdBitRAS | 1<<CmdBitCAS
	f.Control = 1<<ControlBitCKE | 1<<ControlBitResetN
	f.Address = 0x123
	f.BankAddress = 0x2

	p := f.phase(0, 2)
	require.True(t, p.CS[0])
	require.False(t, p.CS[1])
	require.True(t, p.RAS)
	require.True(t, p.CAS)
	require.False(t, p.WE)
	require.True(t, p.CKE[0])
	require.True(t, p.CKE[1], "CKE is a broadcast control line, not per-command")
	require.False(t, p.ODT[0])
	require.True(t, p.ResetN)
	require.Equal(t, uint32(0x123), p.Address)
	require.Equal(t, uint32(0x2), p.Bank)
}
