package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTiming_ZeroIsAlwaysReady(t *testing.T) {
	g := NewTiming(0)
	require.True(t, g.Ready())
	g.Tick(true)
	require.True(t, g.Ready())
}

func TestTiming_ClosesForNCyclesAfterArm(t *testing.T) {
	g := NewTiming(3)
	require.True(t, g.Ready(), "should start ready")
	g.Tick(true) // arm
	require.False(t, g.Ready())
	g.Tick(false)
	require.False(t, g.Ready())
	g.Tick(false)
	require.True(t, g.Ready(), "should reopen exactly N cycles after arm")
}

func TestTiming_OverlappingArmRestartsInterval(t *testing.T) {
	g := NewTiming(4)
	g.Tick(true)
	g.Tick(false)
	g.Tick(true) // re-arm before original interval elapsed
	require.False(t, g.Ready())
	for i := 0; i < 2; i++ {
		g.Tick(false)
	}
	require.False(t, g.Ready())
	g.Tick(false)
	require.True(t, g.Ready())
}

func TestWindow_AlwaysOpenWhenDisabled(t *testing.T) {
	g := NewWindow(0)
	for i := 0; i < 10; i++ {
		g.Tick(true)
		require.True(t, g.Ready())
	}
}

func TestWindow_ClosesAfterFourArmsInWindow(t *testing.T) {
	g := NewWindow(8)
	for i := 0; i < 3; i++ {
		require.True(t, g.Ready())
		g.Tick(true)
	}
	// Fourth arm: ready was true going in (count==3), so the gate closes
	// for this very cycle's arm.
	require.True(t, g.Ready())
	g.Tick(true)
	require.False(t, g.Ready())
}

func TestWindow_ReopensAsOldArmsAgeOut(t *testing.T) {
	g := NewWindow(4)
	for i := 0; i < 4; i++ {
		g.Tick(true)
	}
	require.False(t, g.Ready())
	// Window is exactly 4 wide: the next tick retires the oldest arm
	// (bringing population back to 3) while admitting a non-arm.
	g.Tick(false)
	require.True(t, g.Ready())
}

func TestWindow_NeverBlocksBelowFourWideWindow(t *testing.T) {
	g := NewWindow(3)
	for i := 0; i < 20; i++ {
		g.Tick(true)
		require.True(t, g.Ready())
	}
}
