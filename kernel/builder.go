package kernel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/region"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/memory"
)

// A Builder can build kernels.
type Builder struct {
	ramFrames   uint32
	swapFrames  []uint32
	tlbEntries  int
	replacement replacement.Policy
	fit         region.FitPolicy
	sysMem      SysMem
	log         *zap.Logger
}

// MakeBuilder returns a Builder with 64 RAM frames, one swap device of 256
// frames, and a 32-entry TLB.
func MakeBuilder() Builder {
	return Builder{
		ramFrames:   64,
		swapFrames:  []uint32{256},
		tlbEntries:  32,
		replacement: replacement.FIFO,
		fit:         region.FirstFit,
	}
}

// WithRAMFrames sets the number of RAM frames.
func (b Builder) WithRAMFrames(n uint32) Builder {
	b.ramFrames = n
	return b
}

// WithSwapDevices sets the number of frames of every swap device. Device 0 is
// active at start.
func (b Builder) WithSwapDevices(frames ...uint32) Builder {
	b.swapFrames = frames
	return b
}

// WithTLBEntries sets the capacity of the TLB.
func (b Builder) WithTLBEntries(n int) Builder {
	b.tlbEntries = n
	return b
}

// WithReplacementPolicy sets the order victims are selected in.
func (b Builder) WithReplacementPolicy(p replacement.Policy) Builder {
	b.replacement = p
	return b
}

// WithFitPolicy sets how freed regions are reused.
func (b Builder) WithFitPolicy(p region.FitPolicy) Builder {
	b.fit = p
	return b
}

// WithSysMem routes the memory syscalls the library issues to s instead of
// the kernel itself.
func (b Builder) WithSysMem(s SysMem) Builder {
	b.sysMem = s
	return b
}

// WithLogger sets the logger of the kernel and all its components.
func (b Builder) WithLogger(log *zap.Logger) Builder {
	b.log = log
	return b
}

// Build creates a kernel.
func (b Builder) Build(name string) *Kernel {
	b.mustBeValid()

	log := logging.OrNop(b.log)

	swaps := make([]*memory.Pool, len(b.swapFrames))
	for i, n := range b.swapFrames {
		swaps[i] = memory.NewPool(fmt.Sprintf("%s.SWAP%d", name, i), n)
	}

	t := tlb.MakeBuilder().
		WithNumEntries(b.tlbEntries).
		WithLogger(log).
		Build(name + ".TLB")

	m := mmu.MakeBuilder().
		WithRAM(memory.NewPool(name+".RAM", b.ramFrames)).
		WithSwapDevices(swaps...).
		WithTLB(t).
		WithReplacementQueue(
			replacement.NewQueue(b.replacement.VictimFinder())).
		WithLogger(log).
		Build(name + ".MMU")

	k := &Kernel{
		name:        name,
		mmu:         m,
		fit:         b.fit,
		replacement: b.replacement,
		procs:       make(map[vm.PID]*Process),
		log:         log.With(zap.String("component", name)),
	}

	k.sysMem = b.sysMem
	if k.sysMem == nil {
		k.sysMem = k
	}

	return k
}

func (b Builder) mustBeValid() {
	if b.ramFrames == 0 || b.ramFrames > vm.MaxFrameNumber {
		panic(fmt.Sprintf("RAM of %d frames not addressable", b.ramFrames))
	}

	if len(b.swapFrames) > mmu.MaxSwapDevices {
		panic(fmt.Sprintf("%d swap devices, at most %d supported",
			len(b.swapFrames), mmu.MaxSwapDevices))
	}

	for _, n := range b.swapFrames {
		if n == 0 || n > vm.MaxSwapOffset {
			panic(fmt.Sprintf("swap device of %d frames not addressable", n))
		}
	}

	if b.tlbEntries <= 0 {
		panic("a TLB needs at least one entry")
	}
}
