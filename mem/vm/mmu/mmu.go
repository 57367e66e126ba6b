// Package mmu provides the demand-paging engine. It resolves virtual pages to
// RAM frames, evicting resident pages to a swap device when RAM runs out.
package mmu

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/memory"
	"github.com/sarchlab/pagingsim/sim/hooking"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// MaxSwapDevices is the number of swap devices an MMU can use.
const MaxSwapDevices = 4

// ErrResourceExhausted is returned when a page needs a frame while both RAM
// and the swap device are full. A swap-in is never refused this way: the
// swapped page trades places with a victim instead.
var ErrResourceExhausted = errors.New("RAM and swap exhausted")

// Hook positions of an MMU. The hook item is always a PageEvent.
var (
	HookPosFault   = &hooking.HookPos{Name: "Page Fault"}
	HookPosSwapOut = &hooking.HookPos{Name: "Swap Out"}
	HookPosSwapIn  = &hooking.HookPos{Name: "Swap In"}
	HookPosUnmap   = &hooking.HookPos{Name: "Unmap"}
)

// FaultKind tells how a fault was served. It is the detail of a fault hook.
type FaultKind int

// The kinds of faults.
const (
	// SoftFault found the page resident after a TLB miss.
	SoftFault FaultKind = iota
	// HardFault brought the page back from a swap device.
	HardFault
	// ZeroFill mapped a fresh zeroed frame for an unmapped page.
	ZeroFill
)

func (k FaultKind) String() string {
	switch k {
	case SoftFault:
		return "soft"
	case HardFault:
		return "hard"
	case ZeroFill:
		return "zero-fill"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// A PageEvent describes the page a hook is triggered for.
type PageEvent struct {
	PID         vm.PID
	PageNumber  uint64
	FrameNumber uint32
	SwapType    uint32
	SwapOffset  uint32
}

// Comp is the MMU. Every method requires the global lock, and hooks are
// invoked while it is held, so a hook must not call back into the MMU.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase

	ram        *memory.Pool
	swaps      []*memory.Pool
	activeSwap int

	tlb   *tlb.Comp
	queue *replacement.Queue

	log *zap.Logger
}

// RAM returns the pool resident pages live in.
func (c *Comp) RAM() *memory.Pool {
	return c.ram
}

// SwapDevices returns the swap pools, indexed by swap type.
func (c *Comp) SwapDevices() []*memory.Pool {
	return c.swaps
}

// TLB returns the translation cache of the MMU.
func (c *Comp) TLB() *tlb.Comp {
	return c.tlb
}

// ReplacementQueue returns the queue victims are selected from.
func (c *Comp) ReplacementQueue() *replacement.Queue {
	return c.queue
}

// ActiveSwap returns the index of the device evicted pages are written to.
func (c *Comp) ActiveSwap(g *mm.Guard) int {
	g.MustHold()
	return c.activeSwap
}

// SetActiveSwap selects the device evicted pages are written to. Pages already
// on other devices stay there until they are swapped in.
func (c *Comp) SetActiveSwap(g *mm.Guard, index int) error {
	g.MustHold()

	if index < 0 || index >= len(c.swaps) {
		return fmt.Errorf("swap device %d of %d: %w",
			index, len(c.swaps), memory.ErrOutOfRange)
	}

	c.activeSwap = index
	c.log.Info("active swap device changed",
		zap.Int("device", index), zap.String("name", c.swaps[index].Name()))

	return nil
}

// Resolve returns the RAM frame holding page pgn of ctx, faulting the page in
// if needed, and leaves the translation in the TLB.
func (c *Comp) Resolve(g *mm.Guard, ctx *mm.Context, pgn uint64) (uint32, error) {
	g.MustHold()

	pid := ctx.PID()
	if fpn, hit := c.tlb.Lookup(pid, pgn); hit {
		return fpn, nil
	}

	pte := ctx.PageTable(g).GetEntry(pgn)

	var (
		fpn uint32
		err error
	)

	switch {
	case pte.Present():
		fpn = pte.FrameNumber()
		c.invoke(HookPosFault, SoftFault, PageEvent{
			PID: pid, PageNumber: pgn, FrameNumber: fpn,
		})
	case pte.Swapped():
		fpn, err = c.swapIn(g, ctx, pgn, pte)
	default:
		fpn, err = c.mapZeroed(g, ctx, pgn)
	}

	if err != nil {
		return 0, err
	}

	c.tlb.Insert(pid, pgn, fpn)

	return fpn, nil
}

// Map makes page pgn of ctx resident. An unmapped page gets a fresh zeroed
// frame; a resident page keeps its frame.
func (c *Comp) Map(g *mm.Guard, ctx *mm.Context, pgn uint64) (uint32, error) {
	g.MustHold()

	pte := ctx.PageTable(g).GetEntry(pgn)

	switch {
	case pte.Present():
		return pte.FrameNumber(), nil
	case pte.Swapped():
		return c.swapIn(g, ctx, pgn, pte)
	default:
		return c.mapZeroed(g, ctx, pgn)
	}
}

func (c *Comp) mapZeroed(g *mm.Guard, ctx *mm.Context, pgn uint64) (uint32, error) {
	fpn, err := c.acquireFrame(g, ctx)
	if err != nil {
		return 0, err
	}

	if err := c.ram.ZeroFrame(fpn); err != nil {
		panic(err)
	}

	c.mustSetResident(g, ctx, pgn, fpn)
	c.queue.Enqueue(g, ctx, pgn)

	c.log.Debug("page mapped",
		zap.Uint32("pid", uint32(ctx.PID())),
		zap.Uint64("pgn", pgn),
		zap.Uint32("fpn", fpn))
	c.invoke(HookPosFault, ZeroFill, PageEvent{
		PID: ctx.PID(), PageNumber: pgn, FrameNumber: fpn,
	})

	return fpn, nil
}

func (c *Comp) swapIn(
	g *mm.Guard,
	ctx *mm.Context,
	pgn uint64,
	pte vm.PTE,
) (uint32, error) {
	dev := c.mustGetSwapDevice(pte.SwapType())
	slot := pte.SwapOffset()

	fpn, err := c.acquireFrame(g, ctx)
	if errors.Is(err, ErrResourceExhausted) {
		return c.exchange(g, ctx, pgn, pte)
	}

	if err != nil {
		return 0, err
	}

	mustCopyPage(c.ram, fpn, dev, slot)

	if err := dev.Release(slot); err != nil {
		panic(err)
	}

	c.mustSetResident(g, ctx, pgn, fpn)
	c.queue.Enqueue(g, ctx, pgn)

	c.reportSwapIn(ctx.PID(), pgn, fpn, pte)

	return fpn, nil
}

// exchange brings a swapped page back when no free swap slot is left for a
// victim: the victim takes over the slot the requester vacates.
func (c *Comp) exchange(
	g *mm.Guard,
	ctx *mm.Context,
	pgn uint64,
	pte vm.PTE,
) (uint32, error) {
	dev := c.mustGetSwapDevice(pte.SwapType())
	slot := pte.SwapOffset()

	victim, fpn, err := c.selectVictim(g)
	if err != nil {
		return 0, err
	}

	if err := ExchangePages(c.ram, fpn, dev, slot); err != nil {
		panic(err)
	}

	c.mustSetOwner(dev, slot, victim.Owner)
	c.mustSetOwner(c.ram, fpn, ctx)
	c.mustSetSwapped(g, victim.Owner, victim.PageNumber, pte.SwapType(), slot)
	c.mustSetResident(g, ctx, pgn, fpn)
	c.queue.Enqueue(g, ctx, pgn)

	c.reportSwapOut(victim, fpn, pte.SwapType(), slot)
	c.reportSwapIn(ctx.PID(), pgn, fpn, pte)

	return fpn, nil
}

// acquireFrame takes a free RAM frame for owner, evicting a victim when RAM is
// full. On failure no state has changed.
func (c *Comp) acquireFrame(g *mm.Guard, owner *mm.Context) (uint32, error) {
	fpn, err := c.ram.Acquire(owner)
	if err == nil {
		return fpn, nil
	}

	if !errors.Is(err, memory.ErrExhausted) {
		return 0, err
	}

	return c.evict(g, owner)
}

// evict writes a victim page to the active swap device and hands its frame to
// newOwner. The swap slot is taken before the victim is chosen, so running out
// of swap leaves the victim resident.
func (c *Comp) evict(g *mm.Guard, newOwner *mm.Context) (uint32, error) {
	if len(c.swaps) == 0 {
		return 0, c.exhausted("no swap device")
	}

	swapType := uint32(c.activeSwap)
	dev := c.swaps[c.activeSwap]

	slot, err := dev.Acquire(nil)
	if err != nil {
		return 0, c.exhausted(err.Error())
	}

	victim, fpn, err := c.selectVictim(g)
	if err != nil {
		if relErr := dev.Release(slot); relErr != nil {
			panic(relErr)
		}

		return 0, err
	}

	mustCopyPage(dev, slot, c.ram, fpn)

	c.mustSetOwner(dev, slot, victim.Owner)
	c.mustSetSwapped(g, victim.Owner, victim.PageNumber, swapType, slot)
	c.mustSetOwner(c.ram, fpn, newOwner)

	c.reportSwapOut(victim, fpn, swapType, slot)

	return fpn, nil
}

// selectVictim removes a victim from the replacement queue and drops its
// translation. The victim keeps its page-table entry until the caller moves
// it to swap.
func (c *Comp) selectVictim(g *mm.Guard) (replacement.Node, uint32, error) {
	victim, ok := c.queue.SelectVictim(g)
	if !ok {
		return replacement.Node{}, 0, c.exhausted("no resident page to evict")
	}

	pte := victim.Owner.PageTable(g).Lookup(victim.PageNumber)
	if !pte.Present() {
		panic(fmt.Sprintf("victim page %d of pid %d is %s: %v",
			victim.PageNumber, victim.Owner.PID(), pte, vm.ErrInvalidMapping))
	}

	c.tlb.Invalidate(victim.Owner.PID(), victim.PageNumber)

	return victim, pte.FrameNumber(), nil
}

// Unmap releases the frame or swap slot of page pgn of ctx and clears its
// entry. Unmapping an unmapped page only drops a stale translation.
func (c *Comp) Unmap(g *mm.Guard, ctx *mm.Context, pgn uint64) {
	g.MustHold()

	pt := ctx.PageTable(g)
	pte := pt.Lookup(pgn)

	c.tlb.Invalidate(ctx.PID(), pgn)

	if pte.Unmapped() {
		return
	}

	pt.SetEntry(pgn, 0)

	event := PageEvent{PID: ctx.PID(), PageNumber: pgn}

	switch {
	case pte.Present():
		c.queue.Remove(g, ctx, pgn)
		event.FrameNumber = pte.FrameNumber()

		if err := c.ram.Release(pte.FrameNumber()); err != nil {
			panic(err)
		}
	case pte.Swapped():
		event.SwapType = pte.SwapType()
		event.SwapOffset = pte.SwapOffset()

		dev := c.mustGetSwapDevice(pte.SwapType())
		if err := dev.Release(pte.SwapOffset()); err != nil {
			panic(err)
		}
	}

	c.invoke(HookPosUnmap, nil, event)
}

// UnmapAll releases every page of ctx and purges its translations. It returns
// how many pages were released.
func (c *Comp) UnmapAll(g *mm.Guard, ctx *mm.Context) int {
	g.MustHold()

	var pages []uint64

	ctx.PageTable(g).ForEach(func(pgn uint64, _ vm.PTE) {
		pages = append(pages, pgn)
	})

	for _, pgn := range pages {
		c.Unmap(g, ctx, pgn)
	}

	c.tlb.InvalidateProcess(ctx.PID())
	c.queue.RemoveOwner(g, ctx)

	return len(pages)
}

func (c *Comp) exhausted(reason string) error {
	c.log.Error("cannot find a frame", zap.String("reason", reason))
	return fmt.Errorf("%s: %w", reason, ErrResourceExhausted)
}

func (c *Comp) mustGetSwapDevice(swapType uint32) *memory.Pool {
	if int(swapType) >= len(c.swaps) {
		panic(fmt.Sprintf("swap type %d without a device: %v",
			swapType, vm.ErrInvalidMapping))
	}

	return c.swaps[swapType]
}

func (c *Comp) mustSetResident(
	g *mm.Guard,
	ctx *mm.Context,
	pgn uint64,
	fpn uint32,
) {
	if err := ctx.PageTable(g).SetResident(pgn, fpn); err != nil {
		panic(err)
	}
}

func (c *Comp) mustSetSwapped(
	g *mm.Guard,
	ctx *mm.Context,
	pgn uint64,
	swapType, slot uint32,
) {
	if err := ctx.PageTable(g).SetSwapped(pgn, swapType, slot); err != nil {
		panic(err)
	}
}

func (c *Comp) mustSetOwner(pool *memory.Pool, fpn uint32, owner memory.Owner) {
	if err := pool.SetOwner(fpn, owner); err != nil {
		panic(err)
	}
}

func (c *Comp) reportSwapOut(
	victim replacement.Node,
	fpn, swapType, slot uint32,
) {
	c.log.Info("page swapped out",
		zap.Uint32("pid", uint32(victim.Owner.PID())),
		zap.Uint64("pgn", victim.PageNumber),
		zap.Uint32("fpn", fpn),
		zap.Uint32("swap_type", swapType),
		zap.Uint32("swap_offset", slot))
	c.invoke(HookPosSwapOut, nil, PageEvent{
		PID:         victim.Owner.PID(),
		PageNumber:  victim.PageNumber,
		FrameNumber: fpn,
		SwapType:    swapType,
		SwapOffset:  slot,
	})
}

func (c *Comp) reportSwapIn(pid vm.PID, pgn uint64, fpn uint32, from vm.PTE) {
	event := PageEvent{
		PID:         pid,
		PageNumber:  pgn,
		FrameNumber: fpn,
		SwapType:    from.SwapType(),
		SwapOffset:  from.SwapOffset(),
	}

	c.log.Info("page swapped in",
		zap.Uint32("pid", uint32(pid)),
		zap.Uint64("pgn", pgn),
		zap.Uint32("fpn", fpn),
		zap.Uint32("swap_type", event.SwapType),
		zap.Uint32("swap_offset", event.SwapOffset))
	c.invoke(HookPosSwapIn, nil, event)
	c.invoke(HookPosFault, HardFault, event)
}

func (c *Comp) invoke(pos *hooking.HookPos, detail interface{}, event PageEvent) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   event,
		Detail: detail,
	})
}
