package bank

// Slicer splits a column-aligned client address into its row and column
// components (spec.md §4.4 "Address slicing"). Column occupies the low
// bits of the address; row occupies everything above. The address itself
// never carries the alignment bits dropped by the burst width, so the
// column value must be shifted back up by align when reconstructing it.
type Slicer struct {
	ColBits int
	Align   int // log2(burst length)
}

func (s Slicer) split() int { return s.ColBits - s.Align }

// Row extracts the row field of addr.
func (s Slicer) Row(addr uint32) uint32 {
	return addr >> uint(s.split())
}

// Col extracts the column field of addr, re-aligned to its full width.
func (s Slicer) Col(addr uint32) uint32 {
	mask := uint32(1)<<uint(s.split()) - 1
	return (addr & mask) << uint(s.Align)
}
