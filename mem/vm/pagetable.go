package vm

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// PID stands for Process ID.
type PID uint32

// A PageTable maps the virtual page numbers of one address space to their
// entries. It is a five-level radix tree whose intermediate levels are created
// on demand. Every exported method runs under the table's lock from the walk
// to the last update, so a read-modify-write through Update is atomic.
type PageTable struct {
	lock sync.Locker
	root *directory

	numDirectories int
}

// directory is one level of the tree. Inner levels own their children through
// a sparse map; the leaf level owns a dense array of entries.
type directory struct {
	children map[uint16]*directory
	entries  *[EntriesPerTable]PTE
}

func newDirectory(leaf bool) *directory {
	d := &directory{}
	if leaf {
		d.entries = new([EntriesPerTable]PTE)
	} else {
		d.children = make(map[uint16]*directory)
	}

	return d
}

// NewPageTable creates an empty page table guarded by lock. The lock is
// normally the owning memory context's lock. A nil lock gives the table a
// private mutex.
func NewPageTable(lock sync.Locker) *PageTable {
	if lock == nil {
		lock = &sync.Mutex{}
	}

	return &PageTable{lock: lock}
}

// walk returns the leaf slot of the page. With create set, missing levels are
// allocated zeroed; otherwise a missing level yields nil.
func (pt *PageTable) walk(pgn uint64, create bool) *PTE {
	pageNumberMustBeValid(pgn)

	if pt.root == nil {
		if !create {
			return nil
		}

		pt.root = newDirectory(false)
		pt.numDirectories++
	}

	idx := PageIndices(pgn)
	dir := pt.root

	for l := PGD; l < PT; l++ {
		next, found := dir.children[idx[l]]
		if !found {
			if !create {
				return nil
			}

			next = newDirectory(l+1 == PT)
			dir.children[idx[l]] = next
			pt.numDirectories++
		}

		dir = next
	}

	return &dir.entries[idx[PT]]
}

func pageNumberMustBeValid(pgn uint64) {
	if pgn >= MaxPageNumber {
		panic(fmt.Sprintf("page number %#x beyond the address space", pgn))
	}
}

// GetEntry returns the entry of a page, creating the path to it if needed.
func (pt *PageTable) GetEntry(pgn uint64) PTE {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	return *pt.walk(pgn, true)
}

// Lookup returns the entry of a page without allocating any level. A page
// under a missing level reads as unmapped.
func (pt *PageTable) Lookup(pgn uint64) PTE {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	slot := pt.walk(pgn, false)
	if slot == nil {
		return 0
	}

	return *slot
}

// SetEntry overwrites the entry of a page.
func (pt *PageTable) SetEntry(pgn uint64, pte PTE) {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	*pt.walk(pgn, true) = pte
}

// SetResident marks a page present at frame fpn. It clears the swapped and
// dirty state.
func (pt *PageTable) SetResident(pgn uint64, fpn uint32) error {
	pte, err := ResidentPTE(fpn)
	if err != nil {
		return err
	}

	pt.SetEntry(pgn, pte)

	return nil
}

// SetSwapped marks a page as stored on swap device swapType at swapOffset.
func (pt *PageTable) SetSwapped(pgn uint64, swapType, swapOffset uint32) error {
	pte, err := SwappedPTE(swapType, swapOffset)
	if err != nil {
		return err
	}

	pt.SetEntry(pgn, pte)

	return nil
}

// Update applies fn to the entry of a page and stores the result.
func (pt *PageTable) Update(pgn uint64, fn func(PTE) PTE) PTE {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	slot := pt.walk(pgn, true)
	*slot = fn(*slot)

	return *slot
}

// MarkDirty sets the dirty bit of a present page. It reports whether the page
// was present.
func (pt *PageTable) MarkDirty(pgn uint64) bool {
	pte := pt.Update(pgn, func(p PTE) PTE {
		if !p.Present() {
			return p
		}

		return p.WithDirty(true)
	})

	return pte.Present()
}

// NumDirectories returns how many table levels have been allocated.
func (pt *PageTable) NumDirectories() int {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	return pt.numDirectories
}

// ForEach calls fn for every mapped entry in ascending page order. fn must not
// call back into the table.
func (pt *PageTable) ForEach(fn func(pgn uint64, pte PTE)) {
	pt.lock.Lock()
	defer pt.lock.Unlock()

	if pt.root == nil {
		return
	}

	pt.visit(pt.root, PGD, 0, func(pgn uint64, _ []uint16, pte PTE) {
		fn(pgn, pte)
	})
}

func (pt *PageTable) visit(
	dir *directory,
	level Level,
	prefix uint64,
	fn func(pgn uint64, path []uint16, pte PTE),
) {
	if level == PT {
		for i, pte := range dir.entries {
			if pte == 0 {
				continue
			}

			pgn := prefix<<LevelBits | uint64(i)
			fn(pgn, pathOf(pgn), pte)
		}

		return
	}

	keys := make([]int, 0, len(dir.children))
	for k := range dir.children {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	for _, k := range keys {
		child := dir.children[uint16(k)]
		pt.visit(child, level+1, prefix<<LevelBits|uint64(k), fn)
	}
}

func pathOf(pgn uint64) []uint16 {
	idx := PageIndices(pgn)
	return idx[:]
}

// Dump writes one line per mapped entry, listing the table index at every
// level followed by the entry itself.
func (pt *PageTable) Dump(w io.Writer, pid PID) {
	fmt.Fprintf(w, "print_pgtbl pid %d\n", pid)

	pt.lock.Lock()
	defer pt.lock.Unlock()

	if pt.root == nil {
		fmt.Fprintf(w, "\tPGD is empty\n")
		return
	}

	pt.visit(pt.root, PGD, 0, func(pgn uint64, path []uint16, pte PTE) {
		fmt.Fprintf(w,
			"\tPGD=%03x P4D=%03x PUD=%03x PMD=%03x PT=%03x PGN=%d PTE=%s\n",
			path[PGD], path[P4D], path[PUD], path[PMD], path[PT], pgn, pte)
	})
}
