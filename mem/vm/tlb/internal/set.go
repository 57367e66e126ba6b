// Package internal provides the definition required for defining TLB.
package internal

import (
	"container/list"

	"github.com/sarchlab/pagingsim/mem/vm"
)

// A Key tags one translation.
type Key struct {
	PID        vm.PID
	PageNumber uint64
}

// An Entry is one valid translation.
type Entry struct {
	Key
	FrameNumber uint32
}

// A Set holds a bounded number of entries ordered by recency. Lookup, Update,
// Evict and Visit are the operations which we can perform on a set.
type Set interface {
	Lookup(key Key) (entry Entry, found bool)
	Update(entry Entry) (evicted Entry, didEvict bool)
	Visit(key Key)
	Remove(key Key) bool
	RemoveIf(pred func(Entry) bool) int
	Reset()
	Len() int
	Entries() []Entry
}

// NewSet creates a new TLB set with numWays entries.
func NewSet(numWays int) Set {
	if numWays <= 0 {
		panic("a TLB set needs at least one way")
	}

	return &setImpl{
		numWays:   numWays,
		visitList: list.New(),
		keyMap:    make(map[Key]*list.Element, numWays),
	}
}

// setImpl keeps the most recently used entry at the front of visitList.
type setImpl struct {
	numWays   int
	visitList *list.List
	keyMap    map[Key]*list.Element
}

func (s *setImpl) Lookup(key Key) (Entry, bool) {
	elem, ok := s.keyMap[key]
	if !ok {
		return Entry{}, false
	}

	return elem.Value.(Entry), true
}

func (s *setImpl) Update(entry Entry) (Entry, bool) {
	if elem, ok := s.keyMap[entry.Key]; ok {
		elem.Value = entry
		s.visitList.MoveToFront(elem)

		return Entry{}, false
	}

	var (
		evicted  Entry
		didEvict bool
	)

	if s.visitList.Len() >= s.numWays {
		evicted, didEvict = s.evict()
	}

	s.keyMap[entry.Key] = s.visitList.PushFront(entry)

	return evicted, didEvict
}

func (s *setImpl) evict() (Entry, bool) {
	back := s.visitList.Back()
	if back == nil {
		return Entry{}, false
	}

	entry := s.visitList.Remove(back).(Entry)
	delete(s.keyMap, entry.Key)

	return entry, true
}

func (s *setImpl) Visit(key Key) {
	if elem, ok := s.keyMap[key]; ok {
		s.visitList.MoveToFront(elem)
	}
}

func (s *setImpl) Remove(key Key) bool {
	elem, ok := s.keyMap[key]
	if !ok {
		return false
	}

	s.visitList.Remove(elem)
	delete(s.keyMap, key)

	return true
}

func (s *setImpl) RemoveIf(pred func(Entry) bool) int {
	removed := 0

	for elem := s.visitList.Front(); elem != nil; {
		next := elem.Next()

		entry := elem.Value.(Entry)
		if pred(entry) {
			s.visitList.Remove(elem)
			delete(s.keyMap, entry.Key)
			removed++
		}

		elem = next
	}

	return removed
}

func (s *setImpl) Reset() {
	s.visitList.Init()
	clear(s.keyMap)
}

func (s *setImpl) Len() int {
	return s.visitList.Len()
}

// Entries lists the entries, most recently used first.
func (s *setImpl) Entries() []Entry {
	entries := make([]Entry, 0, s.visitList.Len())
	for elem := s.visitList.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, elem.Value.(Entry))
	}

	return entries
}
