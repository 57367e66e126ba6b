package replacement

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/region"
)

var _ = Describe("Queue", func() {
	var (
		lock   mm.GlobalLock
		g      *mm.Guard
		p1, p2 *mm.Context
	)

	BeforeEach(func() {
		g = lock.Acquire()
		p1 = mm.NewContext(1, region.FirstFit)
		p2 = mm.NewContext(2, region.FirstFit)
	})

	AfterEach(func() {
		g.Release()
	})

	It("should evict the oldest page first under FIFO", func() {
		q := NewQueue(FIFO.VictimFinder())
		q.Enqueue(g, p1, 1)
		q.Enqueue(g, p2, 2)
		q.Enqueue(g, p1, 3)

		n, ok := q.SelectVictim(g)
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(Node{PageNumber: 1, Owner: p1}))
		Expect(q.Len(g)).To(Equal(2))
		Expect(q.Contains(g, p1, 1)).To(BeFalse())
	})

	It("should evict the newest page first under LIFO", func() {
		q := NewQueue(LIFO.VictimFinder())
		q.Enqueue(g, p1, 1)
		q.Enqueue(g, p2, 2)

		n, ok := q.SelectVictim(g)
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(Node{PageNumber: 2, Owner: p2}))
	})

	It("should find no victim in an empty queue", func() {
		q := NewQueue(FIFO.VictimFinder())

		_, ok := q.SelectVictim(g)
		Expect(ok).To(BeFalse())
	})

	It("should panic when a page is queued twice", func() {
		q := NewQueue(FIFO.VictimFinder())
		q.Enqueue(g, p1, 1)

		Expect(func() { q.Enqueue(g, p1, 1) }).To(Panic())
	})

	It("should tell apart the same page of two contexts", func() {
		q := NewQueue(FIFO.VictimFinder())
		q.Enqueue(g, p1, 1)
		q.Enqueue(g, p2, 1)

		Expect(q.Remove(g, p1, 1)).To(BeTrue())
		Expect(q.Remove(g, p1, 1)).To(BeFalse())
		Expect(q.Contains(g, p2, 1)).To(BeTrue())
	})

	It("should drop every page of a context", func() {
		q := NewQueue(FIFO.VictimFinder())
		q.Enqueue(g, p1, 1)
		q.Enqueue(g, p2, 2)
		q.Enqueue(g, p1, 3)

		Expect(q.RemoveOwner(g, p1)).To(Equal(2))
		Expect(q.Snapshot(g)).To(Equal([]Node{{PageNumber: 2, Owner: p2}}))
	})

	It("should require the global lock", func() {
		q := NewQueue(FIFO.VictimFinder())

		Expect(func() { q.Enqueue(nil, p1, 1) }).To(Panic())
	})

	It("should dump the queue", func() {
		q := NewQueue(FIFO.VictimFinder())
		q.Enqueue(g, p2, 7)

		buf := new(bytes.Buffer)
		q.Dump(g, buf)

		Expect(buf.String()).To(ContainSubstring("pid 2 pgn 7"))
	})

	DescribeTable("should parse policy names",
		func(name string, want Policy) {
			p, err := ParsePolicy(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
			Expect(p.String()).To(Equal(want.String()))
		},
		Entry("default", "", FIFO),
		Entry("fifo", "FIFO", FIFO),
		Entry("lifo", "lifo", LIFO),
	)

	It("should reject an unknown policy", func() {
		_, err := ParsePolicy("clock")
		Expect(err).To(HaveOccurred())
	})
})
