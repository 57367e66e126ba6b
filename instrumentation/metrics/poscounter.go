package metrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/pagingsim/sim/hooking"
)

// PosCountHook counts how often every hook position is triggered, keyed by
// the position name.
type PosCountHook struct {
	lock   sync.Mutex
	filter func(ctx hooking.HookCtx) bool
	names  []string
	counts map[string]uint64
}

// NewPosCountHook creates a counter. A nil filter counts every event.
func NewPosCountHook(filter func(ctx hooking.HookCtx) bool) *PosCountHook {
	return &PosCountHook{
		filter: filter,
		counts: make(map[string]uint64),
	}
}

// Func counts the position of the event.
func (h *PosCountHook) Func(ctx hooking.HookCtx) {
	if h.filter != nil && !h.filter(ctx) {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	name := ctx.Pos.Name
	if _, ok := h.counts[name]; !ok {
		h.names = append(h.names, name)
	}

	h.counts[name]++
}

// Names returns the positions seen, in the order first seen.
func (h *PosCountHook) Names() []string {
	h.lock.Lock()
	defer h.lock.Unlock()

	return append([]string(nil), h.names...)
}

// Count returns how often the named position was triggered.
func (h *PosCountHook) Count(name string) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.counts[name]
}

// Report writes one line per position.
func (h *PosCountHook) Report(w io.Writer) {
	for _, name := range h.Names() {
		fmt.Fprintf(w, "%-16s %d\n", name, h.Count(name))
	}
}
