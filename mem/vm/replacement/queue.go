// Package replacement provides the global queue of resident pages that victims
// are selected from when RAM runs out.
package replacement

import (
	"container/list"
	"fmt"
	"io"

	"github.com/sarchlab/pagingsim/mem/vm/mm"
)

// A Node is one resident page.
type Node struct {
	PageNumber uint64
	Owner      *mm.Context
}

type nodeKey struct {
	owner *mm.Context
	pgn   uint64
}

// A Queue holds one node per resident page of every context. All methods
// require the global lock.
type Queue struct {
	victimFinder VictimFinder
	list         *list.List
	index        map[nodeKey]*list.Element
}

// NewQueue creates an empty queue evicting with the given finder.
func NewQueue(victimFinder VictimFinder) *Queue {
	return &Queue{
		victimFinder: victimFinder,
		list:         list.New(),
		index:        make(map[nodeKey]*list.Element),
	}
}

// Enqueue records page pgn of owner as newly resident. A page can only be
// queued once.
func (q *Queue) Enqueue(g *mm.Guard, owner *mm.Context, pgn uint64) {
	g.MustHold()

	key := nodeKey{owner: owner, pgn: pgn}
	if _, ok := q.index[key]; ok {
		panic(fmt.Sprintf("page %d of pid %d queued twice", pgn, owner.PID()))
	}

	q.index[key] = q.list.PushBack(Node{PageNumber: pgn, Owner: owner})
}

// Remove drops the node of a page that stopped being resident. It reports
// whether the page was queued.
func (q *Queue) Remove(g *mm.Guard, owner *mm.Context, pgn uint64) bool {
	g.MustHold()

	key := nodeKey{owner: owner, pgn: pgn}

	elem, ok := q.index[key]
	if !ok {
		return false
	}

	q.list.Remove(elem)
	delete(q.index, key)

	return true
}

// RemoveOwner drops every node of a context and returns how many were
// dropped.
func (q *Queue) RemoveOwner(g *mm.Guard, owner *mm.Context) int {
	g.MustHold()

	removed := 0

	for elem := q.list.Front(); elem != nil; {
		next := elem.Next()

		node := elem.Value.(Node)
		if node.Owner == owner {
			q.list.Remove(elem)
			delete(q.index, nodeKey{owner: owner, pgn: node.PageNumber})
			removed++
		}

		elem = next
	}

	return removed
}

// SelectVictim removes the next victim from the queue.
func (q *Queue) SelectVictim(g *mm.Guard) (Node, bool) {
	g.MustHold()

	elem := q.victimFinder.FindVictim(q.list)
	if elem == nil {
		return Node{}, false
	}

	node := q.list.Remove(elem).(Node)
	delete(q.index, nodeKey{owner: node.Owner, pgn: node.PageNumber})

	return node, true
}

// Contains reports whether a page is queued.
func (q *Queue) Contains(g *mm.Guard, owner *mm.Context, pgn uint64) bool {
	g.MustHold()

	_, ok := q.index[nodeKey{owner: owner, pgn: pgn}]

	return ok
}

// Len returns the number of queued pages.
func (q *Queue) Len(g *mm.Guard) int {
	g.MustHold()
	return q.list.Len()
}

// Snapshot lists the queued pages in the order they became resident.
func (q *Queue) Snapshot(g *mm.Guard) []Node {
	g.MustHold()

	nodes := make([]Node, 0, q.list.Len())
	for elem := q.list.Front(); elem != nil; elem = elem.Next() {
		nodes = append(nodes, elem.Value.(Node))
	}

	return nodes
}

// Dump writes the queued pages, oldest first.
func (q *Queue) Dump(g *mm.Guard, w io.Writer) {
	nodes := q.Snapshot(g)

	fmt.Fprintf(w, "replacement queue: %d pages\n", len(nodes))

	for _, n := range nodes {
		fmt.Fprintf(w, "\tpid %d pgn %d\n", n.Owner.PID(), n.PageNumber)
	}
}
