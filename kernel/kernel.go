// Package kernel provides the memory subsystem of the simulated operating
// system: process memory contexts, the memory syscalls, and the library calls
// processes allocate and access memory through.
package kernel

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/region"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/memory"
	"github.com/sarchlab/pagingsim/sim/hooking"
)

// Hook positions of a kernel. The hook item is always a RegionEvent.
var (
	HookPosAllocate = &hooking.HookPos{Name: "Allocate"}
	HookPosRelease  = &hooking.HookPos{Name: "Release"}
	HookPosGrow     = &hooking.HookPos{Name: "Grow"}
	HookPosExit     = &hooking.HookPos{Name: "Exit"}
)

// A RegionEvent describes the region a kernel hook is triggered for.
type RegionEvent struct {
	PID    vm.PID
	ID     int
	Region region.Region
	Reused bool
}

// A Kernel owns the physical memory, the TLB, and the replacement queue, and
// serves the memory requests of its processes. All paging state changes
// happen under the kernel's global lock.
type Kernel struct {
	hooking.HookableBase

	name        string
	lock        mm.GlobalLock
	mmu         *mmu.Comp
	fit         region.FitPolicy
	replacement replacement.Policy
	sysMem      SysMem

	procLock sync.Mutex
	procs    map[vm.PID]*Process
	lastPID  vm.PID

	log *zap.Logger
}

// A Process is the handle of one running process.
type Process struct {
	pid    vm.PID
	ctx    *mm.Context
	kernel *Kernel
	exited bool
}

// PID returns the process ID.
func (p *Process) PID() vm.PID {
	return p.pid
}

// Context returns the memory context of the process.
func (p *Process) Context() *mm.Context {
	return p.ctx
}

// Kernel returns the kernel the process runs on.
func (p *Process) Kernel() *Kernel {
	return p.kernel
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// MMU returns the paging engine of the kernel.
func (k *Kernel) MMU() *mmu.Comp {
	return k.mmu
}

// TLB returns the translation cache of the kernel.
func (k *Kernel) TLB() *tlb.Comp {
	return k.mmu.TLB()
}

// RAM returns the RAM pool.
func (k *Kernel) RAM() *memory.Pool {
	return k.mmu.RAM()
}

// SwapDevices returns the swap pools.
func (k *Kernel) SwapDevices() []*memory.Pool {
	return k.mmu.SwapDevices()
}

// AcceptHook registers a hook with the kernel, its MMU, and its TLB.
func (k *Kernel) AcceptHook(hook hooking.Hook) {
	k.HookableBase.AcceptHook(hook)
	k.mmu.AcceptHook(hook)
	k.mmu.TLB().AcceptHook(hook)
}

// Spawn creates a process with an empty memory context.
func (k *Kernel) Spawn() *Process {
	k.procLock.Lock()
	defer k.procLock.Unlock()

	k.lastPID++
	p := &Process{
		pid:    k.lastPID,
		ctx:    mm.NewContext(k.lastPID, k.fit),
		kernel: k,
	}
	k.procs[p.pid] = p

	k.log.Info("process spawned", zap.Uint32("pid", uint32(p.pid)))

	return p
}

// Process returns a running process.
func (k *Kernel) Process(pid vm.PID) (*Process, error) {
	k.procLock.Lock()
	defer k.procLock.Unlock()

	p, ok := k.procs[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNoSuchProcess)
	}

	return p, nil
}

// Processes lists the running processes by ascending PID.
func (k *Kernel) Processes() []*Process {
	k.procLock.Lock()
	defer k.procLock.Unlock()

	procs := make([]*Process, 0, len(k.procs))
	for _, p := range k.procs {
		procs = append(procs, p)
	}

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].pid < procs[j].pid
	})

	return procs
}

// Exit tears down a process: every frame and swap slot it owns is released
// and its translations are purged.
func (k *Kernel) Exit(p *Process) error {
	g := k.lock.Acquire()
	defer g.Release()

	if err := k.mustBeRunning(p); err != nil {
		return err
	}

	n := k.mmu.UnmapAll(g, p.ctx)
	p.exited = true

	k.procLock.Lock()
	delete(k.procs, p.pid)
	k.procLock.Unlock()

	k.log.Info("process exited",
		zap.Uint32("pid", uint32(p.pid)), zap.Int("pages", n))
	k.invoke(HookPosExit, RegionEvent{PID: p.pid})

	return nil
}

// SetActiveSwap selects the swap device evicted pages are written to.
func (k *Kernel) SetActiveSwap(index int) error {
	g := k.lock.Acquire()
	defer g.Release()

	return k.mmu.SetActiveSwap(g, index)
}

func (k *Kernel) mustBeRunning(p *Process) error {
	if p == nil || p.kernel != k || p.exited {
		return ErrNoSuchProcess
	}

	return nil
}

func (k *Kernel) invoke(pos *hooking.HookPos, event RegionEvent) {
	if k.NumHooks() == 0 {
		return
	}

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    pos,
		Item:   event,
	})
}

// Stats is a snapshot of the resource usage of a kernel.
type Stats struct {
	Processes   int
	RAMFrames   uint32
	RAMUsed     int
	Swap        []SwapStats
	ActiveSwap  int
	Resident    int
	TLB         tlb.Stats
	TLBEntries  int
	Replacement string
	Fit         string
}

// SwapStats is the usage of one swap device.
type SwapStats struct {
	Name   string
	Frames uint32
	Used   int
}

// Stats returns a snapshot of the resource usage.
func (k *Kernel) Stats() Stats {
	g := k.lock.Acquire()
	defer g.Release()

	s := Stats{
		Processes:   len(k.Processes()),
		RAMFrames:   k.RAM().NumFrames(),
		RAMUsed:     k.RAM().NumUsed(),
		ActiveSwap:  k.mmu.ActiveSwap(g),
		Resident:    k.mmu.ReplacementQueue().Len(g),
		TLB:         k.TLB().Stats(),
		TLBEntries:  k.TLB().Len(),
		Replacement: k.replacement.String(),
		Fit:         k.fit.String(),
	}

	for _, dev := range k.SwapDevices() {
		s.Swap = append(s.Swap, SwapStats{
			Name:   dev.Name(),
			Frames: dev.NumFrames(),
			Used:   dev.NumUsed(),
		})
	}

	return s
}

// DumpPageTable writes the page table of a process.
func (k *Kernel) DumpPageTable(w io.Writer, pid vm.PID) error {
	p, err := k.Process(pid)
	if err != nil {
		return err
	}

	g := k.lock.Acquire()
	defer g.Release()

	p.ctx.PageTable(g).Dump(w, pid)

	return nil
}

// DumpFrames writes the used frames of RAM and every swap device.
func (k *Kernel) DumpFrames(w io.Writer) {
	g := k.lock.Acquire()
	defer g.Release()

	k.RAM().Dump(w)

	for _, dev := range k.SwapDevices() {
		dev.Dump(w)
	}
}

// Dump writes the whole memory state of the kernel.
func (k *Kernel) Dump(w io.Writer) {
	g := k.lock.Acquire()
	defer g.Release()

	for _, p := range k.Processes() {
		p.ctx.Dump(g, w)
		p.ctx.PageTable(g).Dump(w, p.pid)
	}

	k.RAM().Dump(w)

	for _, dev := range k.SwapDevices() {
		dev.Dump(w)
	}

	k.mmu.ReplacementQueue().Dump(g, w)
	fmt.Fprintf(w, "[TLB STATS] %s\n", k.TLB().Stats())
}
