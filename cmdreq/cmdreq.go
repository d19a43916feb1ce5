// Package cmdreq defines the internal command-request record shared by
// bank, refresh and mux: the stream that flows from each per-bank state
// machine (and the refresh scheduler) into the multiplexer's choosers.
//
// This is cmd_request_rw_layout in the reference design: a row or column
// address (A), a combined bank+rank select (BA), the three raw DRAM
// strobes (CAS/RAS/WE), and three category flags. A request with all three
// category flags clear is a NOP placeholder (spec.md §3).
package cmdreq

// Request is the payload of one command-stream entry.
type Request struct {
	A  uint32 // row or column value, depending on the issuing state.
	BA uint32 // bank-machine index: rank in the low log2(nranks) bits, bank above.

	CAS bool
	RAS bool
	WE  bool

	IsCmd   bool
	IsRead  bool
	IsWrite bool
}

// Endpoint is a Request riding a valid/ready/last handshake, exactly like
// the stream.Endpoint wrapper the reference design puts around
// cmd_request_rw_layout. Last is only meaningful on the refresh stream
// (spec.md §4.3): it marks the final micro-command of a refresh burst.
type Endpoint struct {
	Valid bool
	Ready bool
	Last  bool
	Request
}

// Accept reports whether this endpoint's request was accepted this cycle.
func (e Endpoint) Accept() bool { return e.Valid && e.Ready }

// IsActivate reports whether Request encodes an ACT command: RAS set,
// CAS and WE clear. Used by the chooser/multiplexer to arm the tRRD/tFAW
// gates without a dedicated category flag, mirroring the reference
// design's `ras & ~cas & ~we` test.
func (r Request) IsActivate() bool {
	return r.RAS && !r.CAS && !r.WE
}
