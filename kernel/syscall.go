package kernel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/memory"
)

// Memory syscall operations, passed in register A1.
const (
	// SysMemMapOp creates an area. A2 is the area id, A3 the page-aligned
	// start address.
	SysMemMapOp uint64 = iota + 1
	// SysMemIncOp grows an area. A2 is the area id, A3 the page-aligned
	// increment. Fresh frames are mapped at the end of the area.
	SysMemIncOp
	// SysMemSwpOp copies RAM frame A2 to frame A3 of the active swap device.
	SysMemSwpOp
	// SysMemIORead reads the RAM byte at physical address A2 into A3.
	SysMemIORead
	// SysMemIOWrite writes the low byte of A3 to RAM physical address A2.
	SysMemIOWrite
)

// Regs is the register block of a syscall.
type Regs struct {
	A1 uint64
	A2 uint64
	A3 uint64
}

// SysMem is the memory syscall entry point. The caller holds the global lock
// and passes its guard.
type SysMem interface {
	SysMem(g *mm.Guard, p *Process, regs *Regs) error
}

// SysMem serves a memory syscall of process p.
func (k *Kernel) SysMem(g *mm.Guard, p *Process, regs *Regs) error {
	g.MustHold()

	if err := k.mustBeRunning(p); err != nil {
		return err
	}

	switch regs.A1 {
	case SysMemMapOp:
		return k.mapArea(g, p, int(regs.A2), regs.A3)
	case SysMemIncOp:
		return k.growArea(g, p, int(regs.A2), regs.A3)
	case SysMemSwpOp:
		return k.copyToSwap(g, uint32(regs.A2), uint32(regs.A3))
	case SysMemIORead:
		return ioRead(k.RAM(), regs)
	case SysMemIOWrite:
		return k.RAM().WritePhysical(regs.A2, byte(regs.A3))
	default:
		return fmt.Errorf("memory syscall op %d: %w", regs.A1, ErrInvalidSyscall)
	}
}

func ioRead(dev memory.Controller, regs *Regs) error {
	v, err := dev.ReadPhysical(regs.A2)
	if err != nil {
		return err
	}

	regs.A3 = uint64(v)

	return nil
}

func (k *Kernel) mapArea(g *mm.Guard, p *Process, id int, start uint64) error {
	if vm.PageOffset(start) != 0 {
		return fmt.Errorf("area start %#x not page aligned: %w",
			start, ErrInvalidSize)
	}

	if _, err := p.ctx.AddArea(g, id, start); err != nil {
		return err
	}

	k.log.Info("area created",
		zap.Uint32("pid", uint32(p.pid)),
		zap.Int("area", id),
		zap.Uint64("start", start))

	return nil
}

// growArea maps inc bytes of fresh frames at the end of an area. On failure
// the pages mapped so far are released and the area keeps its size.
func (k *Kernel) growArea(g *mm.Guard, p *Process, id int, inc uint64) error {
	if inc == 0 || vm.PageOffset(inc) != 0 {
		return fmt.Errorf("increment %d not page aligned: %w", inc, ErrInvalidSize)
	}

	area, err := p.ctx.Area(g, id)
	if err != nil {
		return err
	}

	newEnd := area.End + inc
	if newEnd < area.End || newEnd > vm.AddressSpaceSize {
		return fmt.Errorf("area %d beyond the address space: %w",
			id, ErrOutOfBounds)
	}

	if err := area.ValidateGrowth(newEnd, p.ctx.Areas(g)); err != nil {
		k.log.Warn("area growth rejected",
			zap.Uint32("pid", uint32(p.pid)), zap.Error(err))
		return err
	}

	first := vm.PageNumber(area.End)
	last := vm.PageNumber(newEnd - 1)

	for pgn := first; pgn <= last; pgn++ {
		if _, err := k.mmu.Map(g, p.ctx, pgn); err != nil {
			for mapped := first; mapped < pgn; mapped++ {
				k.mmu.Unmap(g, p.ctx, mapped)
			}

			return err
		}
	}

	oldEnd := area.End
	area.End = newEnd

	k.log.Info("area grown",
		zap.Uint32("pid", uint32(p.pid)),
		zap.Int("area", id),
		zap.Uint64("from", oldEnd),
		zap.Uint64("to", newEnd))

	return nil
}

func (k *Kernel) copyToSwap(g *mm.Guard, fpn, slot uint32) error {
	devs := k.SwapDevices()
	if len(devs) == 0 {
		return fmt.Errorf("no swap device: %w", memory.ErrOutOfRange)
	}

	return mmu.CopyPage(devs[k.mmu.ActiveSwap(g)], slot, k.RAM(), fpn)
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidHandle) ||
		errors.Is(err, ErrOutOfBounds) ||
		errors.Is(err, ErrInvalidSize) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrNoSuchProcess)
}

// Syscall serves a memory syscall of process p under the global lock.
func (k *Kernel) Syscall(p *Process, regs *Regs) error {
	g := k.lock.Acquire()
	defer g.Release()

	if err := k.SysMem(g, p, regs); err != nil {
		k.logFailure("syscall", p, int(regs.A2), err)
		return err
	}

	return nil
}
