// Package crossbar multiplexes client ports onto the controller's bank
// machines (spec.md §4.8), grounded on gram/core/crossbar.py's
// gramCrossbar: one round-robin arbiter per bank, cross-bank locking so a
// multi-beat transaction can't be split across banks, and delay lines that
// line up the write/read data handshakes with the pipeline latency of the
// command that triggered them.
package crossbar

// AddressLayout describes how a client's flat address splits into a bank
// field and a bank-stripped row/column field, grounded on
// gram/common.py's gramNativePort.get_bank_address /
// get_row_column_address (ROW_BANK_COL mapping — the only one spec.md §4.8
// wires up).
type AddressLayout struct {
	// BankBits is the combined width of the bank-select field, already
	// folding in the rank bits: nbanks = nranks * 2^geombankbits, and a
	// bank-machine's Config.Index is numbered 0..nbanks-1 with rank in the
	// low bits (mux.Steerer decodes it back out). The crossbar never
	// distinguishes rank from geometric bank itself — the combined field
	// is exactly the bank-machine index to route to.
	BankBits int
	// CBAShift is colbits - align: the bit position where the bank field
	// starts.
	CBAShift int
}

// bankMask is the BankBits-wide all-ones mask.
func (l AddressLayout) bankMask() uint32 {
	return uint32(1)<<uint(l.BankBits) - 1
}

// Bank extracts the bank-machine index from a client address.
func (l AddressLayout) Bank(addr uint32) uint32 {
	return (addr >> uint(l.CBAShift)) & l.bankMask()
}

// RowCol strips the bank field out of a client address, leaving the
// bank-stripped address a bank.Machine expects (its own Slicer then splits
// this into row/column). Mirrors get_row_column_address's
// Cat(low_bits, high_bits) reassembly.
func (l AddressLayout) RowCol(addr uint32) uint32 {
	low := addr & (uint32(1)<<uint(l.CBAShift) - 1)
	high := addr >> uint(l.CBAShift+l.BankBits)
	return low | (high << uint(l.CBAShift))
}
