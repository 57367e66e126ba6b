package replacement

import (
	"container/list"
	"fmt"
	"strings"
)

// A VictimFinder decides which queued page should be evicted. Pages are
// queued at the back, so the front holds the oldest resident page.
type VictimFinder interface {
	FindVictim(queue *list.List) *list.Element
}

// FIFOVictimFinder evicts the page that became resident first.
type FIFOVictimFinder struct{}

// FindVictim returns the oldest queued page.
func (FIFOVictimFinder) FindVictim(queue *list.List) *list.Element {
	return queue.Front()
}

// LIFOVictimFinder evicts the page that became resident last.
type LIFOVictimFinder struct{}

// FindVictim returns the newest queued page.
func (LIFOVictimFinder) FindVictim(queue *list.List) *list.Element {
	return queue.Back()
}

// Policy names a replacement order.
type Policy int

// The supported replacement orders.
const (
	FIFO Policy = iota
	LIFO
)

// ParsePolicy converts a configuration name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("unknown replacement policy %q", name)
	}
}

func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// VictimFinder returns the finder implementing the policy.
func (p Policy) VictimFinder() VictimFinder {
	if p == LIFO {
		return LIFOVictimFinder{}
	}

	return FIFOVictimFinder{}
}
