package datarecording

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
)

// ProcessSummary is what a recording tells about one process.
type ProcessSummary struct {
	PID         uint32
	Allocations int
	Releases    int
	Faults      map[string]int
	SwapOuts    int
	SwapIns     int
	TLBHits     int
	TLBMisses   int
}

// MapPagingTables maps the tables written by a PagingRecorder.
func MapPagingTables(r DataReader) {
	r.MapTable(TLBEventTable, TLBEvent{})
	r.MapTable(PageEventTable, PageEvent{})
	r.MapTable(RegionEventTable, RegionEvent{})
}

// PageEventsOf returns the page events of a process in recording order, at
// most limit of them when limit is positive, and how many there are in total.
func PageEventsOf(
	ctx context.Context,
	r DataReader,
	pid uint32,
	limit int,
) ([]*PageEvent, int, error) {
	rows, total, err := r.Query(ctx, PageEventTable, QueryParams{
		Where:   "PID = ?",
		Args:    []any{pid},
		OrderBy: "Seq",
		Limit:   limit,
	})
	if err != nil {
		return nil, 0, err
	}

	events := make([]*PageEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.(*PageEvent))
	}

	return events, total, nil
}

// SummarizePaging counts the recorded events of every process. The reader
// must have the paging tables mapped. Summaries are sorted by PID.
func SummarizePaging(ctx context.Context, r DataReader) ([]ProcessSummary, error) {
	summaries := make(map[uint32]*ProcessSummary)

	of := func(pid uint32) *ProcessSummary {
		s, ok := summaries[pid]
		if !ok {
			s = &ProcessSummary{PID: pid, Faults: make(map[string]int)}
			summaries[pid] = s
		}

		return s
	}

	regions, _, err := r.Query(ctx, RegionEventTable, QueryParams{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RegionEventTable, err)
	}

	for _, row := range regions {
		e := row.(*RegionEvent)

		switch e.What {
		case kernel.HookPosAllocate.Name:
			of(e.PID).Allocations++
		case kernel.HookPosRelease.Name:
			of(e.PID).Releases++
		}
	}

	pages, _, err := r.Query(ctx, PageEventTable, QueryParams{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", PageEventTable, err)
	}

	for _, row := range pages {
		e := row.(*PageEvent)

		switch e.What {
		case mmu.HookPosFault.Name:
			of(e.PID).Faults[e.Kind]++
		case mmu.HookPosSwapOut.Name:
			of(e.PID).SwapOuts++
		case mmu.HookPosSwapIn.Name:
			of(e.PID).SwapIns++
		}
	}

	lookups, _, err := r.Query(ctx, TLBEventTable, QueryParams{
		Where: "What IN (?, ?)",
		Args:  []any{tlb.HookPosHit.Name, tlb.HookPosMiss.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TLBEventTable, err)
	}

	for _, row := range lookups {
		e := row.(*TLBEvent)

		if e.What == tlb.HookPosHit.Name {
			of(e.PID).TLBHits++
		} else {
			of(e.PID).TLBMisses++
		}
	}

	list := make([]ProcessSummary, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, *s)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].PID < list[j].PID })

	return list, nil
}

// WriteSummaries prints summaries as a table.
func WriteSummaries(w io.Writer, summaries []ProcessSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tALLOC\tRELEASE\tZERO-FILL\tSOFT\tHARD\t"+
		"SWAP-OUT\tSWAP-IN\tTLB-HIT\tTLB-MISS")

	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.PID, s.Allocations, s.Releases,
			s.Faults[mmu.ZeroFill.String()],
			s.Faults[mmu.SoftFault.String()],
			s.Faults[mmu.HardFault.String()],
			s.SwapOuts, s.SwapIns, s.TLBHits, s.TLBMisses)
	}

	return tw.Flush()
}
