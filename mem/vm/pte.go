package vm

import (
	"errors"
	"fmt"
)

// ErrInvalidMapping reports a request that would break the page-table-entry
// invariants, such as marking a page present at frame zero.
var ErrInvalidMapping = errors.New("invalid mapping")

// A PTE is one page-table entry. The word layout is
//
//	bit 31     present
//	bit 30     swapped
//	bit 29     reserved
//	bit 28     dirty
//	bits 0-12  frame number             (present pages)
//	bits 0-4   swap device type          (swapped pages)
//	bits 5-25  swap offset               (swapped pages)
//
// The frame-number and swap fields share the low bits.
type PTE uint32

// Bit masks and field positions of the PTE word.
const (
	PTEPresentMask  PTE = 1 << 31
	PTESwappedMask  PTE = 1 << 30
	PTEReservedMask PTE = 1 << 29
	PTEDirtyMask    PTE = 1 << 28

	PTEFPNLoBit = 0
	PTEFPNBits  = 13
	PTEFPNMask  PTE = ((1 << PTEFPNBits) - 1) << PTEFPNLoBit

	PTESwapTypeLoBit = 0
	PTESwapTypeBits  = 5
	PTESwapTypeMask  PTE = ((1 << PTESwapTypeBits) - 1) << PTESwapTypeLoBit

	PTESwapOffsetLoBit = 5
	PTESwapOffsetBits  = 21
	PTESwapOffsetMask  PTE = ((1 << PTESwapOffsetBits) - 1) << PTESwapOffsetLoBit

	pteUnionMask = PTEFPNMask | PTESwapTypeMask | PTESwapOffsetMask

	// MaxFrameNumber is the largest frame number a PTE can hold.
	MaxFrameNumber = (1 << PTEFPNBits) - 1
	// MaxSwapType is the largest swap device type a PTE can hold.
	MaxSwapType = (1 << PTESwapTypeBits) - 1
	// MaxSwapOffset is the largest swap offset a PTE can hold.
	MaxSwapOffset = (1 << PTESwapOffsetBits) - 1
)

// InitPTE builds an entry from its fields. A page that is not present yields
// the zero (unmapped) entry. A present, not swapped page must carry a nonzero
// frame number.
func InitPTE(
	present bool,
	fpn uint32,
	dirty bool,
	swapped bool,
	swapType uint32,
	swapOffset uint32,
) (PTE, error) {
	if !present {
		return 0, nil
	}

	var pte PTE
	var err error

	if swapped {
		pte, err = SwappedPTE(swapType, swapOffset)
	} else {
		pte, err = ResidentPTE(fpn)
	}

	if err != nil {
		return 0, err
	}

	if dirty {
		pte |= PTEDirtyMask
	}

	return pte, nil
}

// ResidentPTE returns the entry of a page held in RAM at frame fpn.
func ResidentPTE(fpn uint32) (PTE, error) {
	if fpn == 0 {
		return 0, fmt.Errorf("%w: present page at frame 0", ErrInvalidMapping)
	}

	if fpn > MaxFrameNumber {
		return 0, fmt.Errorf("%w: frame %d exceeds %d",
			ErrInvalidMapping, fpn, MaxFrameNumber)
	}

	return PTEPresentMask | PTE(fpn)<<PTEFPNLoBit, nil
}

// SwappedPTE returns the entry of a page stored on swap device swapType at
// slot swapOffset.
func SwappedPTE(swapType, swapOffset uint32) (PTE, error) {
	if swapType > MaxSwapType {
		return 0, fmt.Errorf("%w: swap type %d exceeds %d",
			ErrInvalidMapping, swapType, MaxSwapType)
	}

	if swapOffset == 0 || swapOffset > MaxSwapOffset {
		return 0, fmt.Errorf("%w: swap offset %d out of range",
			ErrInvalidMapping, swapOffset)
	}

	return PTESwappedMask |
		PTE(swapType)<<PTESwapTypeLoBit |
		PTE(swapOffset)<<PTESwapOffsetLoBit, nil
}

// Present reports whether the page is resident in RAM.
func (p PTE) Present() bool { return p&PTEPresentMask != 0 }

// Swapped reports whether the page lives on a swap device.
func (p PTE) Swapped() bool { return p&PTESwappedMask != 0 }

// Dirty reports whether the page was written since it became resident.
func (p PTE) Dirty() bool { return p&PTEDirtyMask != 0 }

// Unmapped reports whether the entry carries no mapping at all.
func (p PTE) Unmapped() bool { return !p.Present() && !p.Swapped() }

// FrameNumber returns the RAM frame of a present page.
func (p PTE) FrameNumber() uint32 {
	return uint32((p & PTEFPNMask) >> PTEFPNLoBit)
}

// SwapType returns the swap device of a swapped page.
func (p PTE) SwapType() uint32 {
	return uint32((p & PTESwapTypeMask) >> PTESwapTypeLoBit)
}

// SwapOffset returns the swap slot of a swapped page.
func (p PTE) SwapOffset() uint32 {
	return uint32((p & PTESwapOffsetMask) >> PTESwapOffsetLoBit)
}

// WithDirty returns a copy of the entry with the dirty bit set or cleared.
func (p PTE) WithDirty(dirty bool) PTE {
	if dirty {
		return p | PTEDirtyMask
	}

	return p &^ PTEDirtyMask
}

// Valid reports whether the control bits describe exactly one state.
func (p PTE) Valid() bool {
	switch {
	case p.Present() && p.Swapped():
		return false
	case p.Present():
		return p.FrameNumber() != 0
	case p.Swapped():
		return p.SwapOffset() != 0
	default:
		return p&(pteUnionMask|PTEDirtyMask) == 0
	}
}

func (p PTE) String() string {
	switch {
	case p.Present():
		return fmt.Sprintf("%08x [RAM] FPN: %d", uint32(p), p.FrameNumber())
	case p.Swapped():
		return fmt.Sprintf("%08x [SWAP] Device: %d, Offset: %d",
			uint32(p), p.SwapType(), p.SwapOffset())
	default:
		return fmt.Sprintf("%08x", uint32(p))
	}
}
