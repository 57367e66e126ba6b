package mm

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/region"
)

// A Context is the memory of one process: its page table, its areas, and the
// symbol table of its named regions. The context lock guards the page table
// and the symbol table; areas are only changed with the global lock held.
type Context struct {
	lock sync.Mutex

	pid       vm.PID
	fit       region.FitPolicy
	pageTable *vm.PageTable
	areas     []*region.Area
	symbols   region.SymbolTable
}

// NewContext creates the context of a process with a single empty area, id 0,
// starting at address 0.
func NewContext(pid vm.PID, fit region.FitPolicy) *Context {
	c := &Context{
		pid: pid,
		fit: fit,
	}
	c.pageTable = vm.NewPageTable(&c.lock)
	c.areas = []*region.Area{region.NewArea(0, 0, fit)}

	return c
}

// PID returns the ID of the process that owns the context.
func (c *Context) PID() vm.PID {
	return c.pid
}

// PageTable returns the page table of the context.
func (c *Context) PageTable(g *Guard) *vm.PageTable {
	g.MustHold()
	return c.pageTable
}

// AddArea creates a new empty area at start. The area id must be unused and
// start must not fall inside another area.
func (c *Context) AddArea(g *Guard, id int, start uint64) (*region.Area, error) {
	g.MustHold()

	for _, a := range c.areas {
		if a.ID == id {
			return nil, fmt.Errorf("area %d exists: %w", id, region.ErrOverlap)
		}

		if a.Range().Contains(start) || (a.Range().Empty() && a.Start == start) {
			return nil, fmt.Errorf("area %d at %d inside area %d: %w",
				id, start, a.ID, region.ErrOverlap)
		}
	}

	a := region.NewArea(id, start, c.fit)
	c.areas = append(c.areas, a)
	sort.Slice(c.areas, func(i, j int) bool {
		return c.areas[i].ID < c.areas[j].ID
	})

	return a, nil
}

// Area returns the area with the given id.
func (c *Context) Area(g *Guard, id int) (*region.Area, error) {
	g.MustHold()

	for _, a := range c.areas {
		if a.ID == id {
			return a, nil
		}
	}

	return nil, fmt.Errorf("area %d: %w", id, region.ErrInvalidHandle)
}

// Areas lists the areas in ascending id order.
func (c *Context) Areas(g *Guard) []*region.Area {
	g.MustHold()
	return append([]*region.Area(nil), c.areas...)
}

// Symbol returns the region named by a handle.
func (c *Context) Symbol(id int) (region.Region, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.symbols.Get(id)
}

// HandleFree reports whether a handle is in range and unallocated.
func (c *Context) HandleFree(id int) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.symbols.IsFree(id)
}

// BindSymbol names a region by a handle that is currently unallocated.
func (c *Context) BindSymbol(g *Guard, id int, r region.Region) error {
	g.MustHold()

	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.symbols.IsFree(id) {
		return fmt.Errorf("region %d already allocated: %w",
			id, region.ErrInvalidHandle)
	}

	return c.symbols.Set(id, r)
}

// UnbindSymbol releases a handle and returns the region it named.
func (c *Context) UnbindSymbol(g *Guard, id int) (region.Region, error) {
	g.MustHold()

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.symbols.Clear(id)
}

// LiveSymbols lists the allocated handles in ascending order.
func (c *Context) LiveSymbols() []region.Symbol {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.symbols.Live()
}

// SharesPage reports whether page pgn is covered by a named region of the
// context.
func (c *Context) SharesPage(pgn uint64) bool {
	for _, s := range c.LiveSymbols() {
		if s.Empty() {
			continue
		}

		if pgn >= vm.PageNumber(s.Start) && pgn <= vm.PageNumber(s.End-1) {
			return true
		}
	}

	return false
}

// Dump writes the areas and the named regions of the context.
func (c *Context) Dump(g *Guard, w io.Writer) {
	fmt.Fprintf(w, "pid %d\n", c.pid)

	for _, a := range c.Areas(g) {
		a.Dump(w)
	}

	for _, s := range c.LiveSymbols() {
		fmt.Fprintf(w, "\tregion %d %s\n", s.ID, s.Region)
	}
}
