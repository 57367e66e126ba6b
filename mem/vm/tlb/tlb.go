// Package tlb provides the translation cache shared by every process.
package tlb

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/tlb/internal"
	"github.com/sarchlab/pagingsim/sim/hooking"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// Hook positions of a TLB. The hook item is always an Access.
var (
	HookPosHit        = &hooking.HookPos{Name: "TLB Hit"}
	HookPosMiss       = &hooking.HookPos{Name: "TLB Miss"}
	HookPosInsert     = &hooking.HookPos{Name: "TLB Insert"}
	HookPosEvict      = &hooking.HookPos{Name: "TLB Evict"}
	HookPosInvalidate = &hooking.HookPos{Name: "TLB Invalidate"}
)

// An Access describes the translation a hook is triggered for.
type Access struct {
	PID         vm.PID
	PageNumber  uint64
	FrameNumber uint32
}

// Entry is one cached translation.
type Entry = internal.Entry

// Comp is a cache (TLB) that maintains the translations of recently used
// pages. It is fully associative and tagged by process ID. The lock of the TLB
// is never held while calling out of the TLB.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase

	lock       sync.Mutex
	set        internal.Set
	numEntries int

	hits   uint64
	misses uint64

	log *zap.Logger
}

// NumEntries returns the capacity of the TLB.
func (c *Comp) NumEntries() int {
	return c.numEntries
}

// Lookup returns the frame of a page. A hit promotes the entry to most
// recently used.
func (c *Comp) Lookup(pid vm.PID, pgn uint64) (uint32, bool) {
	key := internal.Key{PID: pid, PageNumber: pgn}

	c.lock.Lock()
	entry, found := c.set.Lookup(key)
	if found {
		c.set.Visit(key)
		c.hits++
	} else {
		c.misses++
	}
	c.lock.Unlock()

	access := Access{PID: pid, PageNumber: pgn, FrameNumber: entry.FrameNumber}
	if found {
		c.log.Debug("tlb hit",
			zap.Uint32("pid", uint32(pid)),
			zap.Uint64("pgn", pgn),
			zap.Uint32("fpn", entry.FrameNumber))
		c.invoke(HookPosHit, access)
	} else {
		c.log.Debug("tlb miss",
			zap.Uint32("pid", uint32(pid)),
			zap.Uint64("pgn", pgn))
		c.invoke(HookPosMiss, access)
	}

	return entry.FrameNumber, found
}

// Insert records the frame of a page as the most recently used entry. The
// least recently used entry is evicted when the TLB is full.
func (c *Comp) Insert(pid vm.PID, pgn uint64, fpn uint32) {
	c.lock.Lock()
	evicted, didEvict := c.set.Update(Entry{
		Key:         internal.Key{PID: pid, PageNumber: pgn},
		FrameNumber: fpn,
	})
	c.lock.Unlock()

	if didEvict {
		c.invoke(HookPosEvict, Access{
			PID:         evicted.PID,
			PageNumber:  evicted.PageNumber,
			FrameNumber: evicted.FrameNumber,
		})
	}

	c.invoke(HookPosInsert, Access{PID: pid, PageNumber: pgn, FrameNumber: fpn})
}

// Invalidate removes the entry of a page. Invalidating an absent entry does
// nothing. It reports whether an entry was removed.
func (c *Comp) Invalidate(pid vm.PID, pgn uint64) bool {
	key := internal.Key{PID: pid, PageNumber: pgn}

	c.lock.Lock()
	entry, found := c.set.Lookup(key)
	if found {
		c.set.Remove(key)
	}
	c.lock.Unlock()

	if found {
		c.invoke(HookPosInvalidate, Access{
			PID:         pid,
			PageNumber:  pgn,
			FrameNumber: entry.FrameNumber,
		})
	}

	return found
}

// InvalidateProcess removes every entry of a process and returns how many
// were removed.
func (c *Comp) InvalidateProcess(pid vm.PID) int {
	c.lock.Lock()
	n := c.set.RemoveIf(func(e Entry) bool { return e.PID == pid })
	c.lock.Unlock()

	if n > 0 {
		c.log.Debug("tlb purged process",
			zap.Uint32("pid", uint32(pid)), zap.Int("entries", n))
	}

	return n
}

// Flush removes every entry. The hit and miss counters are kept.
func (c *Comp) Flush() {
	c.lock.Lock()
	c.set.Reset()
	c.lock.Unlock()

	c.log.Debug("tlb flushed")
}

// Len returns the number of valid entries.
func (c *Comp) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.set.Len()
}

// Entries lists the valid entries, most recently used first.
func (c *Comp) Entries() []Entry {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.set.Entries()
}

// Stats returns the hit and miss counters.
func (c *Comp) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	return Stats{Hits: c.hits, Misses: c.misses}
}

func (c *Comp) invoke(pos *hooking.HookPos, access Access) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   access,
	})
}

// Stats counts the lookups of a TLB.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Total returns the number of lookups.
func (s Stats) Total() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns the share of lookups that hit, in percent.
func (s Stats) HitRate() float64 {
	if s.Total() == 0 {
		return 0
	}

	return float64(s.Hits) * 100 / float64(s.Total())
}

func (s Stats) String() string {
	return fmt.Sprintf("Hit: %d | Miss: %d | Total: %d | Hit Rate: %.2f%%",
		s.Hits, s.Misses, s.Total(), s.HitRate())
}
