package kernel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/region"
)

// heapArea is the area the library allocates from.
const heapArea = 0

// Allocate reserves size bytes for process p and names them by handle id. A
// freed region large enough is reused; otherwise the heap grows by size
// rounded up to whole pages. It returns the start address of the region.
func (k *Kernel) Allocate(p *Process, id int, size uint64) (uint64, error) {
	g := k.lock.Acquire()
	defer g.Release()

	addr, err := k.allocate(g, p, id, size)
	if err != nil {
		k.logFailure("allocate", p, id, err)
		return 0, err
	}

	return addr, nil
}

func (k *Kernel) allocate(
	g *mm.Guard,
	p *Process,
	id int,
	size uint64,
) (uint64, error) {
	if err := k.mustBeRunning(p); err != nil {
		return 0, err
	}

	if size == 0 || size > vm.AddressSpaceSize {
		return 0, fmt.Errorf("allocate %d bytes: %w", size, ErrInvalidSize)
	}

	if !p.ctx.HandleFree(id) {
		return 0, fmt.Errorf("region %d out of range or allocated: %w",
			id, ErrInvalidHandle)
	}

	area, err := p.ctx.Area(g, heapArea)
	if err != nil {
		return 0, err
	}

	if r, ok := area.Free.Take(size); ok {
		k.bind(g, p, id, r, true)
		return r.Start, nil
	}

	start := area.Break
	inc := vm.PageAlign(size)

	if start+inc < start || start+inc > vm.AddressSpaceSize {
		return 0, fmt.Errorf("allocate %d bytes at %#x: %w",
			size, start, ErrInvalidSize)
	}

	if start+inc > area.End {
		regs := Regs{
			A1: SysMemIncOp,
			A2: uint64(area.ID),
			A3: start + inc - area.End,
		}

		if err := k.sysMem.SysMem(g, p, &regs); err != nil {
			return 0, err
		}

		k.invoke(HookPosGrow, RegionEvent{
			PID:    p.pid,
			ID:     id,
			Region: region.Region{Start: start, End: start + inc},
		})
	}

	area.Break = start + inc
	r := region.Region{Start: start, End: start + size}
	k.bind(g, p, id, r, false)

	return r.Start, nil
}

func (k *Kernel) bind(
	g *mm.Guard,
	p *Process,
	id int,
	r region.Region,
	reused bool,
) {
	if err := p.ctx.BindSymbol(g, id, r); err != nil {
		panic(err)
	}

	how := "expand"
	if reused {
		how = "reuse"
	}

	k.log.Info("memory allocated",
		zap.Uint32("pid", uint32(p.pid)),
		zap.Int("region", id),
		zap.Uint64("size", r.Size()),
		zap.Uint64("address", r.Start),
		zap.String("strategy", how))
	k.invoke(HookPosAllocate, RegionEvent{
		PID: p.pid, ID: id, Region: r, Reused: reused,
	})
}

// Release frees the region named by handle id. Pages not shared with another
// named region give their frames and swap slots back, and the range is put on
// the free list for reuse. Releasing an unallocated handle changes nothing.
func (k *Kernel) Release(p *Process, id int) error {
	g := k.lock.Acquire()
	defer g.Release()

	if err := k.release(g, p, id); err != nil {
		k.logFailure("release", p, id, err)
		return err
	}

	return nil
}

func (k *Kernel) release(g *mm.Guard, p *Process, id int) error {
	if err := k.mustBeRunning(p); err != nil {
		return err
	}

	r, err := p.ctx.UnbindSymbol(g, id)
	if err != nil {
		return err
	}

	first := vm.PageNumber(r.Start)
	last := vm.PageNumber(r.End - 1)

	for pgn := first; pgn <= last; pgn++ {
		if p.ctx.SharesPage(pgn) {
			k.TLB().Invalidate(p.pid, pgn)
			continue
		}

		k.mmu.Unmap(g, p.ctx, pgn)
	}

	area := k.areaOf(g, p, r)
	if err := area.Free.Push(r); err != nil {
		panic(err)
	}

	k.log.Info("memory released",
		zap.Uint32("pid", uint32(p.pid)),
		zap.Int("region", id),
		zap.Stringer("range", r))
	k.invoke(HookPosRelease, RegionEvent{PID: p.pid, ID: id, Region: r})

	return nil
}

func (k *Kernel) areaOf(g *mm.Guard, p *Process, r region.Region) *region.Area {
	for _, a := range p.ctx.Areas(g) {
		if a.Range().Contains(r.Start) {
			return a
		}
	}

	panic(fmt.Sprintf("region %s of pid %d outside every area", r, p.pid))
}

// ReadByte reads the byte at offset inside the region named by handle id.
func (k *Kernel) ReadByte(p *Process, id int, offset uint64) (byte, error) {
	g := k.lock.Acquire()
	defer g.Release()

	addr, err := k.translate(g, p, id, offset, false)
	if err != nil {
		k.logFailure("read", p, id, err)
		return 0, err
	}

	regs := Regs{A1: SysMemIORead, A2: addr}
	if err := k.sysMem.SysMem(g, p, &regs); err != nil {
		return 0, err
	}

	return byte(regs.A3), nil
}

// WriteByte writes value at offset inside the region named by handle id.
func (k *Kernel) WriteByte(p *Process, id int, offset uint64, value byte) error {
	g := k.lock.Acquire()
	defer g.Release()

	addr, err := k.translate(g, p, id, offset, true)
	if err != nil {
		k.logFailure("write", p, id, err)
		return err
	}

	regs := Regs{A1: SysMemIOWrite, A2: addr, A3: uint64(value)}

	return k.sysMem.SysMem(g, p, &regs)
}

// translate checks the handle and the offset, then resolves the page and
// returns the physical address of the byte.
func (k *Kernel) translate(
	g *mm.Guard,
	p *Process,
	id int,
	offset uint64,
	write bool,
) (uint64, error) {
	if err := k.mustBeRunning(p); err != nil {
		return 0, err
	}

	r, err := p.ctx.Symbol(id)
	if err != nil {
		return 0, err
	}

	vaddr, err := r.Address(offset)
	if err != nil {
		return 0, err
	}

	pgn := vm.PageNumber(vaddr)

	fpn, err := k.mmu.Resolve(g, p.ctx, pgn)
	if err != nil {
		return 0, err
	}

	if write {
		p.ctx.PageTable(g).MarkDirty(pgn)
	}

	return vm.PhysicalAddress(fpn, vm.PageOffset(vaddr)), nil
}

func (k *Kernel) logFailure(op string, p *Process, id int, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("region", id),
		zap.Error(err),
	}

	if p != nil {
		fields = append(fields, zap.Uint32("pid", uint32(p.pid)))
	}

	if isRejection(err) {
		k.log.Warn("request rejected", fields...)
		return
	}

	k.log.Error("request failed", fields...)
}

// Allocate reserves size bytes named by handle id.
func (p *Process) Allocate(id int, size uint64) (uint64, error) {
	return p.kernel.Allocate(p, id, size)
}

// Release frees the region named by handle id.
func (p *Process) Release(id int) error {
	return p.kernel.Release(p, id)
}

// ReadByte reads the byte at offset inside the region named by handle id.
func (p *Process) ReadByte(id int, offset uint64) (byte, error) {
	return p.kernel.ReadByte(p, id, offset)
}

// WriteByte writes value at offset inside the region named by handle id.
func (p *Process) WriteByte(id int, offset uint64, value byte) error {
	return p.kernel.WriteByte(p, id, offset, value)
}
