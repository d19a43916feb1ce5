package mux

import (
	"gramctl/cmdreq"
	"gramctl/dfi"
)

// Steer selects which of four command sources drives a given DFI phase
// this cycle (spec.md §9 "STEER_NOP/CMD/REQ/REFRESH").
type Steer int

const (
	SteerNOP Steer = iota
	SteerCmd
	SteerReq
	SteerRefresh
)

// Steerer places the chosen commands onto the DFI phases, decoding the
// rank select from the low log2(nranks) bits of ba and the bank from the
// bits above them; the top bits of ba are not read as the rank. One Endpoint per steering source
// is supplied each cycle, indexed [SteerNOP, SteerCmd, SteerReq,
// SteerRefresh]; SteerNOP is always treated as invalid.
type Steerer struct {
	nranks   int
	rankBits uint
}

// NewSteerer builds a Steerer for an interface with the given rank count.
func NewSteerer(nranks int) *Steerer {
	bits := 0
	for 1<<uint(bits) < nranks {
		bits++
	}
	return &Steerer{nranks: nranks, rankBits: uint(bits)}
}

// Apply drives phase in place for one DFI phase, given the four candidate
// sources and the selector for this phase.
func (s *Steerer) Apply(phase *dfi.Phase, sources [4]cmdreq.Endpoint, sel Steer, isRefreshPhase bool) {
	phase.ResetN = true
	for i := range phase.CKE {
		phase.CKE[i] = true
	}
	for i := range phase.ODT {
		phase.ODT[i] = true
	}

	src := sources[sel]
	accepted := sel != SteerNOP && src.Valid && src.Ready

	rank := 0
	bank := src.BA
	if s.rankBits > 0 {
		mask := uint32(1)<<s.rankBits - 1
		rank = int(src.BA & mask)
		bank = src.BA >> s.rankBits
	}

	if isRefreshPhase && sel == SteerRefresh {
		for i := range phase.CS {
			phase.CS[i] = true
		}
	} else if s.rankBits > 0 {
		for i := range phase.CS {
			phase.CS[i] = i == rank
		}
	} else {
		for i := range phase.CS {
			phase.CS[i] = true
		}
	}

	phase.Bank = bank
	phase.Address = src.A
	phase.CAS = accepted && src.CAS
	phase.RAS = accepted && src.RAS
	phase.WE = accepted && src.WE
	phase.RdDataEn = accepted && src.IsRead
	phase.WrDataEn = accepted && src.IsWrite
}
