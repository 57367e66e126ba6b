package region

import (
	"fmt"
	"strings"
)

// FitPolicy selects which free region serves an allocation.
type FitPolicy int

// The supported fit policies.
const (
	// FirstFit takes the first region in list order that is large enough.
	FirstFit FitPolicy = iota
	// BestFit takes the smallest region that is large enough, the first one
	// in list order on ties.
	BestFit
)

// ParseFitPolicy converts a configuration name into a FitPolicy.
func ParseFitPolicy(name string) (FitPolicy, error) {
	switch strings.ToLower(name) {
	case "", "first", "first-fit", "firstfit":
		return FirstFit, nil
	case "best", "best-fit", "bestfit":
		return BestFit, nil
	default:
		return 0, fmt.Errorf("unknown fit policy %q", name)
	}
}

func (p FitPolicy) String() string {
	switch p {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return fmt.Sprintf("FitPolicy(%d)", int(p))
	}
}

// A FreeList holds the released ranges of an area. The list is unordered by
// address; the most recently pushed region is the head. Regions on the list
// never overlap.
type FreeList struct {
	policy  FitPolicy
	regions []Region
}

// NewFreeList creates an empty free list.
func NewFreeList(policy FitPolicy) *FreeList {
	return &FreeList{policy: policy}
}

// Policy returns the fit policy of the list.
func (l *FreeList) Policy() FitPolicy {
	return l.policy
}

// Push puts a region at the head of the list. Empty regions are rejected, and
// so are regions overlapping one already on the list.
func (l *FreeList) Push(r Region) error {
	if r.Empty() {
		return fmt.Errorf("free region %s: %w", r, ErrInvalidHandle)
	}

	for _, f := range l.regions {
		if f.Overlaps(r) {
			return fmt.Errorf("free region %s overlaps %s: %w", r, f, ErrOverlap)
		}
	}

	l.regions = append([]Region{r}, l.regions...)

	return nil
}

// Take carves size bytes out of a free region chosen by the fit policy. A
// larger region shrinks in place from its start; an exact match is unlinked.
func (l *FreeList) Take(size uint64) (Region, bool) {
	if size == 0 {
		return Region{}, false
	}

	idx := l.find(size)
	if idx < 0 {
		return Region{}, false
	}

	f := l.regions[idx]
	taken := Region{Start: f.Start, End: f.Start + size}

	if f.Size() == size {
		l.regions = append(l.regions[:idx], l.regions[idx+1:]...)
	} else {
		l.regions[idx].Start += size
	}

	return taken, true
}

func (l *FreeList) find(size uint64) int {
	best := -1

	for i, f := range l.regions {
		if f.Size() < size {
			continue
		}

		if l.policy == FirstFit {
			return i
		}

		if best < 0 || f.Size() < l.regions[best].Size() {
			best = i
		}
	}

	return best
}

// Len returns the number of free regions.
func (l *FreeList) Len() int {
	return len(l.regions)
}

// Regions returns the free regions, head first.
func (l *FreeList) Regions() []Region {
	return append([]Region(nil), l.regions...)
}
