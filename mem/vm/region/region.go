// Package region provides the virtual ranges a process allocates from: the
// address-space areas, their free-region lists, and the symbol table of named
// regions.
package region

import (
	"errors"
	"fmt"
)

// Errors reported by region bookkeeping.
var (
	ErrInvalidHandle = errors.New("invalid region handle")
	ErrOutOfBounds   = errors.New("offset out of region bounds")
	ErrOverlap       = errors.New("area overlaps another area")
)

// A Region is the virtual range [Start, End).
type Region struct {
	Start uint64
	End   uint64
}

// IsZero reports whether the region is the unallocated marker.
func (r Region) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Size returns the number of bytes the region covers.
func (r Region) Size() uint64 {
	if r.End <= r.Start {
		return 0
	}

	return r.End - r.Start
}

// Empty reports whether the region covers no byte.
func (r Region) Empty() bool {
	return r.Size() == 0
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// Overlaps reports whether two regions share at least one byte.
func (r Region) Overlaps(o Region) bool {
	if r.Empty() || o.Empty() {
		return false
	}

	return r.Start < o.End && o.Start < r.End
}

// Address returns the virtual address at offset inside the region.
func (r Region) Address(offset uint64) (uint64, error) {
	if offset >= r.Size() {
		return 0, fmt.Errorf("offset %d in %s: %w", offset, r, ErrOutOfBounds)
	}

	return r.Start + offset, nil
}

func (r Region) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
