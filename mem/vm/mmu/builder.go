package mmu

import (
	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/memory"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// A Builder can build MMU component
type Builder struct {
	ram   *memory.Pool
	swaps []*memory.Pool
	tlb   *tlb.Comp
	queue *replacement.Queue
	log   *zap.Logger
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{}
}

// WithRAM sets the pool that resident pages live in.
func (b Builder) WithRAM(ram *memory.Pool) Builder {
	b.ram = ram
	return b
}

// WithSwapDevices sets the pools that evicted pages are written to. The index
// of a device is the swap type recorded in the page-table entries.
func (b Builder) WithSwapDevices(swaps ...*memory.Pool) Builder {
	b.swaps = swaps
	return b
}

// WithTLB sets the translation cache the MMU keeps coherent.
func (b Builder) WithTLB(t *tlb.Comp) Builder {
	b.tlb = t
	return b
}

// WithReplacementQueue sets the queue victims are selected from.
func (b Builder) WithReplacementQueue(q *replacement.Queue) Builder {
	b.queue = q
	return b
}

// WithLogger sets the logger the MMU reports to.
func (b Builder) WithLogger(log *zap.Logger) Builder {
	b.log = log
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	if b.ram == nil {
		panic("an MMU needs a RAM pool")
	}

	if len(b.swaps) > MaxSwapDevices {
		panic("too many swap devices")
	}

	log := logging.OrNop(b.log)

	t := b.tlb
	if t == nil {
		t = tlb.MakeBuilder().WithLogger(log).Build(name + ".TLB")
	}

	q := b.queue
	if q == nil {
		q = replacement.NewQueue(replacement.FIFO.VictimFinder())
	}

	return &Comp{
		NamedBase: naming.MakeNamedBase(name),
		ram:       b.ram,
		swaps:     append([]*memory.Pool(nil), b.swaps...),
		tlb:       t,
		queue:     q,
		log:       log.With(zap.String("component", name)),
	}
}
