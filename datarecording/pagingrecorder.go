package datarecording

import (
	"fmt"
	"sync/atomic"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/sim/hooking"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// Tables the PagingRecorder writes to.
const (
	TLBEventTable    = "tlb_event"
	PageEventTable   = "page_event"
	RegionEventTable = "region_event"
)

// TLBEvent is a row of the tlb_event table.
type TLBEvent struct {
	Seq         uint64
	Component   string
	What        string
	PID         uint32
	PageNumber  uint64
	FrameNumber uint32
}

// PageEvent is a row of the page_event table.
type PageEvent struct {
	Seq         uint64
	Component   string
	What        string
	Kind        string
	PID         uint32
	PageNumber  uint64
	FrameNumber uint32
	SwapType    uint32
	SwapOffset  uint32
}

// RegionEvent is a row of the region_event table.
type RegionEvent struct {
	Seq       uint64
	Component string
	What      string
	PID       uint32
	Handle    int
	StartAddr uint64
	EndAddr   uint64
	Reused    bool
}

// PagingRecorder is a hook that stores every event of a kernel, its MMU, and
// its TLB. Events share one sequence, so rows of different tables can be put
// back in order.
type PagingRecorder struct {
	recorder DataRecorder
	seq      atomic.Uint64
}

// NewPagingRecorder creates the event tables in recorder.
func NewPagingRecorder(recorder DataRecorder) *PagingRecorder {
	recorder.CreateTable(TLBEventTable, TLBEvent{})
	recorder.CreateTable(PageEventTable, PageEvent{})
	recorder.CreateTable(RegionEventTable, RegionEvent{})

	return &PagingRecorder{recorder: recorder}
}

// Func records one event.
func (r *PagingRecorder) Func(ctx hooking.HookCtx) {
	component := domainName(ctx.Domain)

	switch item := ctx.Item.(type) {
	case tlb.Access:
		r.recorder.InsertData(TLBEventTable, TLBEvent{
			Seq:         r.seq.Add(1),
			Component:   component,
			What:        ctx.Pos.Name,
			PID:         uint32(item.PID),
			PageNumber:  item.PageNumber,
			FrameNumber: item.FrameNumber,
		})
	case mmu.PageEvent:
		kind := ""
		if k, ok := ctx.Detail.(mmu.FaultKind); ok {
			kind = k.String()
		}

		r.recorder.InsertData(PageEventTable, PageEvent{
			Seq:         r.seq.Add(1),
			Component:   component,
			What:        ctx.Pos.Name,
			Kind:        kind,
			PID:         uint32(item.PID),
			PageNumber:  item.PageNumber,
			FrameNumber: item.FrameNumber,
			SwapType:    item.SwapType,
			SwapOffset:  item.SwapOffset,
		})
	case kernel.RegionEvent:
		r.recorder.InsertData(RegionEventTable, RegionEvent{
			Seq:       r.seq.Add(1),
			Component: component,
			What:      ctx.Pos.Name,
			PID:       uint32(item.PID),
			Handle:    item.ID,
			StartAddr: item.Region.Start,
			EndAddr:   item.Region.End,
			Reused:    item.Reused,
		})
	}
}

// Recorded returns the number of events recorded so far.
func (r *PagingRecorder) Recorded() uint64 {
	return r.seq.Load()
}

func domainName(d hooking.Hookable) string {
	if n, ok := d.(naming.Named); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", d)
}
