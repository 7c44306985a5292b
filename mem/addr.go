// Package mem defines the records exchanged between the components of the
// simulated memory hierarchy: addresses, access and invalidation requests and
// the MESI line states the coherence controllers maintain.
package mem

import "log"

// Address identifies a byte, a line or a page in the flat simulated address
// space, depending on how far it has been shifted.
type Address uint64

const (
	// PageBits is log2 of the page size.
	PageBits = 12
	// LineBits is log2 of the cache line size.
	LineBits = 6

	// MaxProcs is the number of processes whose regions fit in the top
	// LineBits bits of the flat space.
	MaxProcs = 1 << LineBits
)

// PageNumber returns the page that holds addr.
func PageNumber(addr Address) Address {
	return addr >> PageBits
}

// LineAddress returns the line that holds addr.
func LineAddress(addr Address) Address {
	return addr >> LineBits
}

// ProcMask returns the address-space mask of a process group. Every process
// occupies a disjoint region of the flat space selected by its index in the
// top bits; the mask is ORed onto page and line numbers. Indices past
// MaxProcs would alias lower processes and abort.
func ProcMask(procIdx uint32) Address {
	if procIdx >= MaxProcs {
		log.Panicf("process %d out of range, at most %d processes", procIdx, MaxProcs)
	}

	return Address(procIdx) << (64 - LineBits)
}

// ParentIndex picks which of n parents (banks) serves a line by folding the
// line address into 16 bits.
func ParentIndex(lineAddr Address, n int) int {
	if n <= 1 {
		return 0
	}

	var res uint64
	tmp := uint64(lineAddr)
	for i := 0; i < 4; i++ {
		res ^= tmp & 0xffff
		tmp >>= 16
	}

	return int(res % uint64(n))
}
