package arb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobin_InitialGrantIsZero(t *testing.T) {
	r := New(4)
	require.Equal(t, 0, r.Grant())
}

func TestRoundRobin_DoesNotAdvanceWhenDisabled(t *testing.T) {
	r := New(4)
	r.Advance(false, 0b1111)
	require.Equal(t, 0, r.Grant())
}

func TestRoundRobin_DoesNotAdvanceWithNoRequests(t *testing.T) {
	r := New(4)
	r.Advance(true, 0)
	require.Equal(t, 0, r.Grant())
}

func TestRoundRobin_RotatesToNextRequester(t *testing.T) {
	r := New(4)
	r.Advance(true, 0b1010) // requesters 1 and 3 want the bus
	require.Equal(t, 1, r.Grant())
	r.Advance(true, 0b1010)
	require.Equal(t, 3, r.Grant())
	r.Advance(true, 0b1010)
	require.Equal(t, 1, r.Grant()) // wraps back around
}

func TestRoundRobin_StaysWhenOnlyCurrentGrantRequests(t *testing.T) {
	r := New(4)
	r.Advance(true, 0b0001) // requester 0 is already granted and re-requests
	require.Equal(t, 0, r.Grant())
}

func TestRoundRobin_FairAcrossFullCycle(t *testing.T) {
	r := New(3)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		seen[r.Grant()] = true
		r.Advance(true, 0b111)
	}
	require.Len(t, seen, 3)
}
