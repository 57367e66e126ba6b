package tlb

import (
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/pagingsim/sim/hooking"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// A Tracer writes one CSV line for every TLB event it is attached to.
type Tracer struct {
	lock   sync.Mutex
	writer io.Writer
	seq    uint64
}

// NewTracer produce a new Tracer, injecting the dependency of a writer.
func NewTracer(w io.Writer) *Tracer {
	t := new(Tracer)
	t.writer = w

	return t
}

// Func prints the tlb trace information.
func (t *Tracer) Func(ctx hooking.HookCtx) {
	access, ok := ctx.Item.(Access)
	if !ok {
		return
	}

	name := ""
	if named, ok := ctx.Domain.(naming.Named); ok {
		name = named.Name()
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.seq++

	_, err := fmt.Fprintf(t.writer,
		"%d,%s,%s,%d,%#x,%d\n",
		t.seq, name, ctx.Pos.Name,
		access.PID, access.PageNumber, access.FrameNumber)
	if err != nil {
		panic(err)
	}
}
