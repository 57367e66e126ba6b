package region

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FreeList", func() {
	Context("first fit", func() {
		var l *FreeList

		BeforeEach(func() {
			l = NewFreeList(FirstFit)
		})

		It("should find nothing in an empty list", func() {
			_, ok := l.Take(1)
			Expect(ok).To(BeFalse())
		})

		It("should reject an empty region", func() {
			Expect(l.Push(Region{Start: 5, End: 5})).
				To(MatchError(ErrInvalidHandle))
		})

		It("should reject an overlapping region", func() {
			Expect(l.Push(Region{Start: 0, End: 100})).To(Succeed())
			Expect(l.Push(Region{Start: 50, End: 150})).
				To(MatchError(ErrOverlap))
		})

		It("should keep the most recent push at the head", func() {
			Expect(l.Push(Region{Start: 0, End: 100})).To(Succeed())
			Expect(l.Push(Region{Start: 200, End: 300})).To(Succeed())

			Expect(l.Regions()).To(Equal([]Region{
				{Start: 200, End: 300},
				{Start: 0, End: 100},
			}))
		})

		It("should shrink a larger region from its start", func() {
			Expect(l.Push(Region{Start: 0, End: 200})).To(Succeed())

			r, ok := l.Take(100)

			Expect(ok).To(BeTrue())
			Expect(r).To(Equal(Region{Start: 0, End: 100}))
			Expect(l.Regions()).To(Equal([]Region{{Start: 100, End: 200}}))
		})

		It("should unlink an exact match", func() {
			Expect(l.Push(Region{Start: 0, End: 200})).To(Succeed())

			r, ok := l.Take(200)

			Expect(ok).To(BeTrue())
			Expect(r).To(Equal(Region{Start: 0, End: 200}))
			Expect(l.Len()).To(BeZero())
		})

		It("should take the first large enough region in list order", func() {
			Expect(l.Push(Region{Start: 0, End: 50})).To(Succeed())
			Expect(l.Push(Region{Start: 100, End: 400})).To(Succeed())
			Expect(l.Push(Region{Start: 500, End: 520})).To(Succeed())

			r, ok := l.Take(40)

			Expect(ok).To(BeTrue())
			Expect(r).To(Equal(Region{Start: 100, End: 140}))
		})
	})

	Context("best fit", func() {
		It("should take the smallest large enough region", func() {
			l := NewFreeList(BestFit)
			Expect(l.Push(Region{Start: 0, End: 50})).To(Succeed())
			Expect(l.Push(Region{Start: 100, End: 400})).To(Succeed())
			Expect(l.Push(Region{Start: 500, End: 520})).To(Succeed())

			r, ok := l.Take(40)

			Expect(ok).To(BeTrue())
			Expect(r).To(Equal(Region{Start: 0, End: 40}))
			Expect(l.Regions()).To(ContainElement(Region{Start: 40, End: 50}))
		})

		It("should prefer the head on ties", func() {
			l := NewFreeList(BestFit)
			Expect(l.Push(Region{Start: 0, End: 50})).To(Succeed())
			Expect(l.Push(Region{Start: 100, End: 150})).To(Succeed())

			r, _ := l.Take(50)
			Expect(r).To(Equal(Region{Start: 100, End: 150}))
		})
	})

	DescribeTable("should parse policy names",
		func(name string, want FitPolicy) {
			p, err := ParseFitPolicy(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
		},
		Entry("default", "", FirstFit),
		Entry("first", "first", FirstFit),
		Entry("best", "Best-Fit", BestFit),
	)

	It("should reject an unknown policy", func() {
		_, err := ParseFitPolicy("worst")
		Expect(err).To(HaveOccurred())
	})

	It("should never hand out overlapping regions", func() {
		for _, policy := range []FitPolicy{FirstFit, BestFit} {
			l := NewFreeList(policy)
			rng := rand.New(rand.NewSource(7))
			var taken []Region
			next := uint64(0)

			for i := 0; i < 500; i++ {
				if len(taken) > 0 && rng.Intn(2) == 0 {
					j := rng.Intn(len(taken))
					Expect(l.Push(taken[j])).To(Succeed())
					taken = append(taken[:j], taken[j+1:]...)

					continue
				}

				size := uint64(rng.Intn(300) + 1)
				r, ok := l.Take(size)
				if !ok {
					r = Region{Start: next, End: next + size}
					next += size
				}

				for _, t := range taken {
					Expect(r.Overlaps(t)).To(BeFalse())
				}
				for _, f := range l.Regions() {
					Expect(r.Overlaps(f)).To(BeFalse())
				}

				taken = append(taken, r)
			}
		}
	})
})
