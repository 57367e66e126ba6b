package region

import (
	"fmt"
	"io"
)

// An Area is one contiguous virtual range of an address space. Memory is
// mapped for [Start, End); Break is the heap cursor, and space below it is
// either named or on the free list.
type Area struct {
	ID    int
	Start uint64
	End   uint64
	Break uint64

	Free *FreeList
}

// NewArea creates an empty area beginning at start.
func NewArea(id int, start uint64, policy FitPolicy) *Area {
	return &Area{
		ID:    id,
		Start: start,
		End:   start,
		Break: start,
		Free:  NewFreeList(policy),
	}
}

// Range returns the mapped range of the area.
func (a *Area) Range() Region {
	return Region{Start: a.Start, End: a.End}
}

// ValidateGrowth checks that extending the area to newEnd does not overlap any
// other area.
func (a *Area) ValidateGrowth(newEnd uint64, others []*Area) error {
	if newEnd < a.End {
		return fmt.Errorf("area %d cannot shrink from %d to %d",
			a.ID, a.End, newEnd)
	}

	grown := Region{Start: a.Start, End: newEnd}

	for _, o := range others {
		if o == a || o.ID == a.ID {
			continue
		}

		swallowed := o.Range().Empty() && o.Start >= a.End && o.Start < newEnd
		if grown.Overlaps(o.Range()) || swallowed {
			return fmt.Errorf("area %d %s and area %d %s: %w",
				a.ID, grown, o.ID, o.Range(), ErrOverlap)
		}
	}

	return nil
}

// Dump writes the area bounds and its free list.
func (a *Area) Dump(w io.Writer) {
	fmt.Fprintf(w, "area %d: [%d, %d) break %d\n", a.ID, a.Start, a.End, a.Break)

	for _, r := range a.Free.Regions() {
		fmt.Fprintf(w, "\tfree %s\n", r)
	}
}
