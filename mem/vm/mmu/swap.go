package mmu

import (
	"fmt"

	"github.com/sarchlab/pagingsim/memory"
)

// CopyPage copies frame srcFpn of src over frame dstFpn of dst. The two pools
// may be the same device.
func CopyPage(dst *memory.Pool, dstFpn uint32, src *memory.Pool, srcFpn uint32) error {
	data, err := src.ReadFrame(srcFpn)
	if err != nil {
		return fmt.Errorf("copy from %s: %w", src.Name(), err)
	}

	if err := dst.WriteFrame(dstFpn, data); err != nil {
		return fmt.Errorf("copy to %s: %w", dst.Name(), err)
	}

	return nil
}

// ExchangePages swaps the content of frame aFpn of a and frame bFpn of b.
func ExchangePages(a *memory.Pool, aFpn uint32, b *memory.Pool, bFpn uint32) error {
	aData, err := a.ReadFrame(aFpn)
	if err != nil {
		return fmt.Errorf("exchange from %s: %w", a.Name(), err)
	}

	bData, err := b.ReadFrame(bFpn)
	if err != nil {
		return fmt.Errorf("exchange from %s: %w", b.Name(), err)
	}

	if err := a.WriteFrame(aFpn, bData); err != nil {
		return fmt.Errorf("exchange to %s: %w", a.Name(), err)
	}

	if err := b.WriteFrame(bFpn, aData); err != nil {
		return fmt.Errorf("exchange to %s: %w", b.Name(), err)
	}

	return nil
}

func mustCopyPage(dst *memory.Pool, dstFpn uint32, src *memory.Pool, srcFpn uint32) {
	if err := CopyPage(dst, dstFpn, src, srcFpn); err != nil {
		panic(err)
	}
}
