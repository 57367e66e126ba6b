package tlb

import (
	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm/tlb/internal"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// A Builder can build TLBs
type Builder struct {
	numEntries int
	log        *zap.Logger
}

// MakeBuilder returns a Builder
func MakeBuilder() Builder {
	return Builder{
		numEntries: 32,
	}
}

// WithNumEntries sets the number of entries in a TLB.
func (b Builder) WithNumEntries(n int) Builder {
	b.numEntries = n
	return b
}

// WithLogger sets the logger the TLB reports to.
func (b Builder) WithLogger(log *zap.Logger) Builder {
	b.log = log
	return b
}

// Build creates a new TLB
func (b Builder) Build(name string) *Comp {
	log := logging.OrNop(b.log)

	return &Comp{
		NamedBase:  naming.MakeNamedBase(name),
		set:        internal.NewSet(b.numEntries),
		numEntries: b.numEntries,
		log:        log.With(zap.String("component", name)),
	}
}
