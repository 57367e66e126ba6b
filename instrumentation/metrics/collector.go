// Package metrics turns the hook events of a kernel into Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/sim/hooking"
)

// Namespace prefixes every metric name.
const Namespace = "pagingsim"

// A Collector is a hook that counts paging events into a private Prometheus
// registry.
type Collector struct {
	registry *prometheus.Registry

	tlbLookups  *prometheus.CounterVec
	tlbEvicts   prometheus.Counter
	faults      *prometheus.CounterVec
	swapOuts    prometheus.Counter
	swapIns     prometheus.Counter
	unmaps      prometheus.Counter
	allocations *prometheus.CounterVec
	releases    prometheus.Counter
	growths     prometheus.Counter
	exits       prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tlbLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tlb",
			Name:      "lookups_total",
			Help:      "TLB lookups by result.",
		}, []string{"result"}),
		tlbEvicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tlb",
			Name:      "evictions_total",
			Help:      "TLB entries evicted to make room.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mmu",
			Name:      "faults_total",
			Help:      "Page faults by kind.",
		}, []string{"kind"}),
		swapOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mmu",
			Name:      "swap_outs_total",
			Help:      "Pages written to a swap device.",
		}),
		swapIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mmu",
			Name:      "swap_ins_total",
			Help:      "Pages read back from a swap device.",
		}),
		unmaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mmu",
			Name:      "unmaps_total",
			Help:      "Pages unmapped.",
		}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kernel",
			Name:      "allocations_total",
			Help:      "Regions allocated, by whether a freed region was reused.",
		}, []string{"strategy"}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kernel",
			Name:      "releases_total",
			Help:      "Regions released.",
		}),
		growths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kernel",
			Name:      "heap_growths_total",
			Help:      "Heap growth syscalls issued by the allocator.",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "kernel",
			Name:      "process_exits_total",
			Help:      "Processes torn down.",
		}),
	}

	c.registry.MustRegister(
		c.tlbLookups, c.tlbEvicts,
		c.faults, c.swapOuts, c.swapIns, c.unmaps,
		c.allocations, c.releases, c.growths, c.exits,
	)

	return c
}

// Registry returns the registry the collector counts into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Func counts one hook event.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case tlb.HookPosHit:
		c.tlbLookups.WithLabelValues("hit").Inc()
	case tlb.HookPosMiss:
		c.tlbLookups.WithLabelValues("miss").Inc()
	case tlb.HookPosEvict:
		c.tlbEvicts.Inc()
	case mmu.HookPosFault:
		if kind, ok := ctx.Detail.(mmu.FaultKind); ok {
			c.faults.WithLabelValues(kind.String()).Inc()
		}
	case mmu.HookPosSwapOut:
		c.swapOuts.Inc()
	case mmu.HookPosSwapIn:
		c.swapIns.Inc()
	case mmu.HookPosUnmap:
		c.unmaps.Inc()
	case kernel.HookPosAllocate:
		c.countAllocation(ctx)
	case kernel.HookPosRelease:
		c.releases.Inc()
	case kernel.HookPosGrow:
		c.growths.Inc()
	case kernel.HookPosExit:
		c.exits.Inc()
	}
}

func (c *Collector) countAllocation(ctx hooking.HookCtx) {
	strategy := "expand"
	if e, ok := ctx.Item.(kernel.RegionEvent); ok && e.Reused {
		strategy = "reuse"
	}

	c.allocations.WithLabelValues(strategy).Inc()
}

// WatchKernel registers gauges that sample the resource usage of k on every
// scrape.
func (c *Collector) WatchKernel(k *kernel.Kernel) {
	labels := prometheus.Labels{"kernel": k.Name()}

	gauge := func(name, help string, f func(s kernel.Stats) float64) {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   "kernel",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return f(k.Stats()) }))
	}

	gauge("processes", "Running processes.", func(s kernel.Stats) float64 {
		return float64(s.Processes)
	})
	gauge("ram_frames_used", "RAM frames in use.", func(s kernel.Stats) float64 {
		return float64(s.RAMUsed)
	})
	gauge("swap_frames_used", "Swap frames in use on all devices.",
		func(s kernel.Stats) float64 {
			used := 0
			for _, d := range s.Swap {
				used += d.Used
			}

			return float64(used)
		})
	gauge("resident_pages", "Pages in the replacement queue.",
		func(s kernel.Stats) float64 { return float64(s.Resident) })
	gauge("tlb_hit_rate_percent", "TLB hit rate.", func(s kernel.Stats) float64 {
		return s.TLB.HitRate()
	})
}
