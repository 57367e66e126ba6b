// Package vm provides the address layout, the page-table-entry format, and the
// multi-level page table used by the paging subsystem.
package vm

import "fmt"

// The 64-bit paging mode splits a virtual address into a 12-bit page offset
// and five 9-bit table indices, outermost (PGD) first.
const (
	Log2PageSize    = 12
	PageSize        = 1 << Log2PageSize
	NumLevels       = 5
	LevelBits       = 9
	EntriesPerTable = 1 << LevelBits
	AddressBits     = Log2PageSize + NumLevels*LevelBits

	// MaxPageNumber is one past the largest addressable virtual page number.
	MaxPageNumber = uint64(1) << (NumLevels * LevelBits)

	// AddressSpaceSize is one past the largest virtual address.
	AddressSpaceSize = MaxPageNumber << Log2PageSize

	addressMask = (uint64(1) << AddressBits) - 1
	offsetMask  = uint64(PageSize - 1)
	levelMask   = uint64(EntriesPerTable - 1)
)

// Level identifies one of the five page-table levels.
type Level int

// The page-table levels, from the root to the leaf.
const (
	PGD Level = iota
	P4D
	PUD
	PMD
	PT
)

var levelNames = [NumLevels]string{"PGD", "P4D", "PUD", "PMD", "PT"}

func (l Level) String() string {
	if l < PGD || l > PT {
		return fmt.Sprintf("Level(%d)", int(l))
	}

	return levelNames[l]
}

// Shift returns the lowest virtual-address bit of the level's index field.
func (l Level) Shift() uint {
	return Log2PageSize + uint(NumLevels-1-int(l))*LevelBits
}

// Mask returns the virtual-address bits covered by the level's index field.
func (l Level) Mask() uint64 {
	return levelMask << l.Shift()
}

// PageNumber returns the virtual page number of an address.
func PageNumber(addr uint64) uint64 {
	return (addr & addressMask) >> Log2PageSize
}

// PageOffset returns the position of an address inside its page.
func PageOffset(addr uint64) uint64 {
	return addr & offsetMask
}

// PageAlign rounds size up to a multiple of the page size.
func PageAlign(size uint64) uint64 {
	return (size + offsetMask) &^ offsetMask
}

// NumPages returns how many pages the range [start, end) touches.
func NumPages(start, end uint64) uint64 {
	if end <= start {
		return 0
	}

	return PageNumber(end-1) - PageNumber(start) + 1
}

// Indices splits a virtual address into its table indices, outermost first.
func Indices(addr uint64) [NumLevels]uint16 {
	var idx [NumLevels]uint16

	addr &= addressMask
	for l := PGD; l <= PT; l++ {
		idx[l] = uint16((addr & l.Mask()) >> l.Shift())
	}

	return idx
}

// PageIndices splits a virtual page number into its table indices.
func PageIndices(pgn uint64) [NumLevels]uint16 {
	return Indices(pgn << Log2PageSize)
}

// PhysicalAddress composes the address used by the physical byte I/O entry
// points.
func PhysicalAddress(fpn uint32, offset uint64) uint64 {
	return uint64(fpn)<<Log2PageSize | (offset & offsetMask)
}

// SplitPhysicalAddress is the inverse of PhysicalAddress.
func SplitPhysicalAddress(addr uint64) (fpn uint32, offset uint64) {
	return uint32(addr >> Log2PageSize), addr & offsetMask
}
