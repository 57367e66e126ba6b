package region

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Region", func() {
	It("should treat [0, 0) as unallocated", func() {
		Expect(Region{}.IsZero()).To(BeTrue())
		Expect(Region{Start: 0, End: 200}.IsZero()).To(BeFalse())
	})

	It("should detect overlaps", func() {
		a := Region{Start: 0, End: 100}

		Expect(a.Overlaps(Region{Start: 99, End: 200})).To(BeTrue())
		Expect(a.Overlaps(Region{Start: 100, End: 200})).To(BeFalse())
		Expect(a.Overlaps(Region{Start: 50, End: 50})).To(BeFalse())
	})

	It("should bounds-check offsets", func() {
		r := Region{Start: 4096, End: 4146}

		addr, err := r.Address(49)
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(uint64(4145)))

		_, err = r.Address(50)
		Expect(err).To(MatchError(ErrOutOfBounds))
	})
})

var _ = Describe("SymbolTable", func() {
	var t *SymbolTable

	BeforeEach(func() {
		t = &SymbolTable{}
	})

	It("should reject handles out of range", func() {
		_, err := t.Get(-1)
		Expect(err).To(MatchError(ErrInvalidHandle))

		_, err = t.Get(MaxSymbols)
		Expect(err).To(MatchError(ErrInvalidHandle))

		Expect(t.Set(MaxSymbols, Region{End: 1})).To(MatchError(ErrInvalidHandle))
	})

	It("should reject unallocated handles", func() {
		_, err := t.Get(3)
		Expect(err).To(MatchError(ErrInvalidHandle))
		Expect(t.IsFree(3)).To(BeTrue())
	})

	It("should bind and clear a handle", func() {
		r := Region{Start: 0, End: 200}
		Expect(t.Set(3, r)).To(Succeed())

		got, err := t.Get(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(r))
		Expect(t.Live()).To(Equal([]Symbol{{ID: 3, Region: r}}))

		cleared, err := t.Clear(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(cleared).To(Equal(r))

		_, err = t.Clear(3)
		Expect(err).To(MatchError(ErrInvalidHandle))
	})
})

var _ = Describe("Area", func() {
	It("should start empty", func() {
		a := NewArea(0, 0, FirstFit)

		Expect(a.Range().Empty()).To(BeTrue())
		Expect(a.Break).To(BeZero())
	})

	It("should allow growth away from other areas", func() {
		a := NewArea(0, 0, FirstFit)
		b := NewArea(1, 1<<20, FirstFit)
		b.End = 1<<20 + 4096

		Expect(a.ValidateGrowth(8192, []*Area{a, b})).To(Succeed())
	})

	It("should reject growth into another area", func() {
		a := NewArea(0, 0, FirstFit)
		b := NewArea(1, 8192, FirstFit)
		b.End = 12288

		Expect(a.ValidateGrowth(12288, []*Area{a, b})).To(MatchError(ErrOverlap))
	})

	It("should reject growth over the start of an empty area", func() {
		a := NewArea(0, 0, FirstFit)
		b := NewArea(1, 4096, FirstFit)

		Expect(a.ValidateGrowth(8192, []*Area{a, b})).To(MatchError(ErrOverlap))
	})

	It("should dump the free list", func() {
		a := NewArea(0, 0, FirstFit)
		a.End, a.Break = 4096, 4096
		Expect(a.Free.Push(Region{Start: 0, End: 200})).To(Succeed())

		buf := new(bytes.Buffer)
		a.Dump(buf)

		Expect(buf.String()).To(ContainSubstring("area 0: [0, 4096) break 4096"))
		Expect(buf.String()).To(ContainSubstring("free [0, 200)"))
	})
})
