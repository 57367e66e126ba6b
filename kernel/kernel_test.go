package kernel

import (
	"bytes"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mm"
	"github.com/sarchlab/pagingsim/mem/vm/region"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
	"github.com/sarchlab/pagingsim/sim/hooking"
)

func withGuard(k *Kernel, f func(g *mm.Guard)) {
	g := k.lock.Acquire()
	defer g.Release()

	f(g)
}

func heapOf(k *Kernel, p *Process) (a region.Area) {
	withGuard(k, func(g *mm.Guard) {
		area, err := p.ctx.Area(g, heapArea)
		Expect(err).NotTo(HaveOccurred())
		a = *area
	})

	return a
}

func pteOf(k *Kernel, p *Process, pgn uint64) (pte vm.PTE) {
	withGuard(k, func(g *mm.Guard) {
		pte = p.ctx.PageTable(g).Lookup(pgn)
	})

	return pte
}

var _ = Describe("Kernel", func() {
	var (
		k *Kernel
		p *Process
	)

	BeforeEach(func() {
		k = MakeBuilder().Build("Kernel")
		p = k.Spawn()
	})

	It("should hand out increasing process IDs", func() {
		p2 := k.Spawn()

		Expect(p.PID()).To(Equal(vm.PID(1)))
		Expect(p2.PID()).To(Equal(vm.PID(2)))
		Expect(k.Processes()).To(Equal([]*Process{p, p2}))

		found, err := k.Process(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeIdenticalTo(p2))
	})

	Context("allocation", func() {
		It("should grow the heap, then reuse a released region", func() {
			addr, err := p.Allocate(0, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(BeZero())

			addr, err = p.Allocate(1, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint64(vm.PageSize)))

			Expect(p.Release(0)).To(Succeed())

			addr, err = p.Allocate(2, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(BeZero())

			heap := heapOf(k, p)
			Expect(heap.Break).To(Equal(uint64(2 * vm.PageSize)))
			Expect(heap.End).To(Equal(uint64(2 * vm.PageSize)))
			Expect(heap.Free.Regions()).To(Equal(
				[]region.Region{{Start: 100, End: 200}}))
		})

		It("should map the grown pages eagerly", func() {
			_, err := p.Allocate(0, 2*vm.PageSize+1)
			Expect(err).NotTo(HaveOccurred())

			for pgn := uint64(0); pgn < 3; pgn++ {
				Expect(pteOf(k, p, pgn).Present()).To(BeTrue())
			}
			Expect(k.RAM().NumUsed()).To(Equal(3))
			Expect(heapOf(k, p).Break).To(Equal(uint64(3 * vm.PageSize)))
		})

		It("should reject a zero size", func() {
			_, err := p.Allocate(0, 0)
			Expect(err).To(MatchError(ErrInvalidSize))
		})

		It("should reject a size beyond the address space", func() {
			_, err := p.Allocate(0, math.MaxUint64)
			Expect(err).To(MatchError(ErrInvalidSize))
			Expect(heapOf(k, p).Break).To(BeZero())
			Expect(heapOf(k, p).End).To(BeZero())

			addr, err := p.Allocate(0, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(BeZero())

			_, err = p.ReadByte(0, 1<<58)
			Expect(err).To(MatchError(ErrOutOfBounds))

			_, err = p.Allocate(1, vm.AddressSpaceSize)
			Expect(err).To(MatchError(ErrInvalidSize))
			Expect(heapOf(k, p).Break).To(Equal(uint64(vm.PageSize)))
		})

		It("should reject a handle out of range", func() {
			_, err := p.Allocate(region.MaxSymbols, 10)
			Expect(err).To(MatchError(ErrInvalidHandle))

			_, err = p.Allocate(-1, 10)
			Expect(err).To(MatchError(ErrInvalidHandle))
		})

		It("should reject a handle already allocated", func() {
			_, err := p.Allocate(3, 10)
			Expect(err).NotTo(HaveOccurred())

			_, err = p.Allocate(3, 10)
			Expect(err).To(MatchError(ErrInvalidHandle))
			Expect(heapOf(k, p).Break).To(Equal(uint64(vm.PageSize)))
		})

		It("should reuse the first large enough region by default", func() {
			_, _ = p.Allocate(0, 300)
			_, _ = p.Allocate(1, 50)
			_, _ = p.Allocate(2, 50)
			Expect(p.Release(2)).To(Succeed())
			Expect(p.Release(0)).To(Succeed())

			addr, err := p.Allocate(3, 40)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(BeZero())
		})

		It("should reuse the smallest large enough region under best fit", func() {
			k = MakeBuilder().WithFitPolicy(region.BestFit).Build("Kernel")
			p = k.Spawn()

			_, _ = p.Allocate(0, 300)
			_, _ = p.Allocate(1, 50)
			_, _ = p.Allocate(2, 50)
			Expect(p.Release(2)).To(Succeed())
			Expect(p.Release(0)).To(Succeed())

			addr, err := p.Allocate(3, 40)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint64(2 * vm.PageSize)))
		})
	})

	Context("release", func() {
		It("should give the frames back", func() {
			_, _ = p.Allocate(0, 100)
			Expect(k.RAM().NumUsed()).To(Equal(1))

			Expect(p.Release(0)).To(Succeed())

			Expect(k.RAM().NumUsed()).To(BeZero())
			Expect(pteOf(k, p, 0).Unmapped()).To(BeTrue())
		})

		It("should reject a second release without side effects", func() {
			_, _ = p.Allocate(0, 100)
			_, _ = p.Allocate(1, 100)
			Expect(p.Release(0)).To(Succeed())
			used := k.RAM().NumUsed()

			Expect(p.Release(0)).To(MatchError(ErrInvalidHandle))

			Expect(k.RAM().NumUsed()).To(Equal(used))
			Expect(heapOf(k, p).Free.Len()).To(Equal(1))
		})

		It("should keep a page shared with another region", func() {
			_, _ = p.Allocate(0, 200)
			Expect(p.Release(0)).To(Succeed())
			_, _ = p.Allocate(1, 100)
			_, _ = p.Allocate(2, 100)
			Expect(p.WriteByte(2, 0, 9)).To(Succeed())

			Expect(p.Release(1)).To(Succeed())

			v, err := p.ReadByte(2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(byte(9)))
		})

		It("should leave no stale translation behind", func() {
			_, _ = p.Allocate(0, 100)
			Expect(p.WriteByte(0, 0, 1)).To(Succeed())
			_, hit := k.TLB().Lookup(p.PID(), 0)
			Expect(hit).To(BeTrue())

			Expect(p.Release(0)).To(Succeed())

			other := k.Spawn()
			_, _ = other.Allocate(0, 100)
			Expect(other.WriteByte(0, 0, 2)).To(Succeed())
			Expect(pteOf(k, other, 0).FrameNumber()).To(Equal(uint32(1)))

			_, hit = k.TLB().Lookup(p.PID(), 0)
			Expect(hit).To(BeFalse())

			_, err := p.ReadByte(0, 0)
			Expect(err).To(MatchError(ErrInvalidHandle))
		})
	})

	Context("byte access", func() {
		BeforeEach(func() {
			_, err := p.Allocate(0, 100)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should read back what was written", func() {
			Expect(p.WriteByte(0, 42, 0xcd)).To(Succeed())

			v, err := p.ReadByte(0, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(byte(0xcd)))
		})

		It("should read zeros from fresh memory", func() {
			v, err := p.ReadByte(0, 99)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeZero())
		})

		It("should mark written pages dirty", func() {
			Expect(pteOf(k, p, 0).Dirty()).To(BeFalse())
			Expect(p.WriteByte(0, 0, 1)).To(Succeed())
			Expect(pteOf(k, p, 0).Dirty()).To(BeTrue())
		})

		It("should reject an offset beyond the region", func() {
			Expect(p.WriteByte(0, 100, 1)).To(MatchError(ErrOutOfBounds))

			_, err := p.ReadByte(0, 1000)
			Expect(err).To(MatchError(ErrOutOfBounds))
		})

		It("should reject an unallocated handle", func() {
			_, err := p.ReadByte(5, 0)
			Expect(err).To(MatchError(ErrInvalidHandle))

			Expect(p.WriteByte(region.MaxSymbols, 0, 1)).
				To(MatchError(ErrInvalidHandle))
			Expect(k.TLB().Stats().Total()).To(BeZero())
		})
	})

	Context("with two RAM frames", func() {
		It("should evict the oldest page under FIFO", func() {
			k = MakeBuilder().WithRAMFrames(2).Build("Kernel")
			p = k.Spawn()

			for id := 0; id < 3; id++ {
				_, err := p.Allocate(id, vm.PageSize)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(pteOf(k, p, 0).Swapped()).To(BeTrue())
			Expect(pteOf(k, p, 1).Present()).To(BeTrue())
			Expect(pteOf(k, p, 2).FrameNumber()).To(Equal(uint32(1)))
		})

		It("should evict the newest page under LIFO", func() {
			k = MakeBuilder().
				WithRAMFrames(2).
				WithReplacementPolicy(replacement.LIFO).
				Build("Kernel")
			p = k.Spawn()

			for id := 0; id < 3; id++ {
				_, err := p.Allocate(id, vm.PageSize)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(pteOf(k, p, 1).Swapped()).To(BeTrue())
			Expect(pteOf(k, p, 0).Present()).To(BeTrue())
			Expect(pteOf(k, p, 2).FrameNumber()).To(Equal(uint32(2)))
		})

		It("should keep data across swapping", func() {
			k = MakeBuilder().WithRAMFrames(2).WithSwapDevices(16).Build("Kernel")
			p = k.Spawn()

			_, err := p.Allocate(0, 8*vm.PageSize)
			Expect(err).NotTo(HaveOccurred())

			for i := uint64(0); i < 8; i++ {
				Expect(p.WriteByte(0, i*vm.PageSize+i, byte(i+1))).To(Succeed())
			}

			for i := uint64(0); i < 8; i++ {
				v, err := p.ReadByte(0, i*vm.PageSize+i)
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(byte(i + 1)))
			}

			Expect(k.RAM().NumUsed()).To(Equal(2))
			Expect(k.SwapDevices()[0].NumUsed()).To(Equal(6))
		})
	})

	Context("when RAM and swap are full", func() {
		BeforeEach(func() {
			k = MakeBuilder().WithRAMFrames(1).WithSwapDevices(1).Build("Kernel")
			p = k.Spawn()
		})

		It("should fail the allocation without side effects", func() {
			_, err := p.Allocate(0, vm.PageSize)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.WriteByte(0, 0, 5)).To(Succeed())
			_, err = p.Allocate(1, vm.PageSize)
			Expect(err).NotTo(HaveOccurred())

			_, err = p.Allocate(2, vm.PageSize)

			Expect(err).To(MatchError(ErrResourceExhausted))
			Expect(p.ctx.HandleFree(2)).To(BeTrue())
			Expect(heapOf(k, p).End).To(Equal(uint64(2 * vm.PageSize)))
			Expect(heapOf(k, p).Break).To(Equal(uint64(2 * vm.PageSize)))
			Expect(k.RAM().NumUsed()).To(Equal(1))
			Expect(k.SwapDevices()[0].NumUsed()).To(Equal(1))

			v, err := p.ReadByte(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(byte(5)))
		})

		It("should roll back a partial growth", func() {
			_, err := p.Allocate(0, 3*vm.PageSize)

			Expect(err).To(MatchError(ErrResourceExhausted))
			Expect(k.RAM().NumUsed()).To(BeZero())
			Expect(k.SwapDevices()[0].NumUsed()).To(BeZero())
			Expect(heapOf(k, p).End).To(BeZero())
			Expect(heapOf(k, p).Break).To(BeZero())
		})
	})

	Context("exit", func() {
		It("should release everything the process owns", func() {
			k = MakeBuilder().WithRAMFrames(2).WithSwapDevices(8).Build("Kernel")
			p = k.Spawn()
			other := k.Spawn()

			_, _ = p.Allocate(0, 3*vm.PageSize)
			_, _ = other.Allocate(0, 10)
			Expect(p.WriteByte(0, 0, 1)).To(Succeed())

			Expect(k.Exit(p)).To(Succeed())

			Expect(k.RAM().NumUsed()).To(Equal(1))
			Expect(k.SwapDevices()[0].NumUsed()).To(BeZero())
			for _, e := range k.TLB().Entries() {
				Expect(e.PID).NotTo(Equal(p.PID()))
			}

			v, err := other.ReadByte(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeZero())
		})

		It("should reject a process that exited", func() {
			Expect(k.Exit(p)).To(Succeed())

			Expect(k.Exit(p)).To(MatchError(ErrNoSuchProcess))
			_, err := p.Allocate(0, 10)
			Expect(err).To(MatchError(ErrNoSuchProcess))
			_, err = k.Process(p.PID())
			Expect(err).To(MatchError(ErrNoSuchProcess))
		})
	})

	Context("syscalls", func() {
		var g *mm.Guard

		BeforeEach(func() {
			g = k.lock.Acquire()
		})

		AfterEach(func() {
			g.Release()
		})

		It("should grow an area by whole pages only", func() {
			err := k.SysMem(g, p, &Regs{A1: SysMemIncOp, A2: 0, A3: 100})
			Expect(err).To(MatchError(ErrInvalidSize))

			err = k.SysMem(g, p, &Regs{A1: SysMemIncOp, A2: 0, A3: vm.PageSize})
			Expect(err).NotTo(HaveOccurred())

			area, _ := p.ctx.Area(g, 0)
			Expect(area.End).To(Equal(uint64(vm.PageSize)))
			Expect(area.Break).To(BeZero())
		})

		It("should refuse to grow into another area", func() {
			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemMapOp, A2: 1, A3: 2 * vm.PageSize,
			})).To(Succeed())
			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemIncOp, A2: 0, A3: vm.PageSize,
			})).To(Succeed())

			err := k.SysMem(g, p, &Regs{
				A1: SysMemIncOp, A2: 0, A3: 2 * vm.PageSize,
			})
			Expect(err).To(MatchError(ErrOverlap))

			area, _ := p.ctx.Area(g, 0)
			Expect(area.End).To(Equal(uint64(vm.PageSize)))
			Expect(k.RAM().NumUsed()).To(Equal(1))

			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemIncOp, A2: 1, A3: vm.PageSize,
			})).To(Succeed())
		})

		It("should reject an unaligned or overlapping area", func() {
			err := k.SysMem(g, p, &Regs{A1: SysMemMapOp, A2: 1, A3: 10})
			Expect(err).To(MatchError(ErrInvalidSize))

			err = k.SysMem(g, p, &Regs{A1: SysMemMapOp, A2: 0, A3: 1 << 20})
			Expect(err).To(MatchError(ErrOverlap))
		})

		It("should reject an unknown area", func() {
			err := k.SysMem(g, p, &Regs{A1: SysMemIncOp, A2: 7, A3: vm.PageSize})
			Expect(err).To(MatchError(ErrInvalidHandle))
		})

		It("should access physical memory byte by byte", func() {
			addr := vm.PhysicalAddress(1, 10)

			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemIOWrite, A2: addr, A3: 0x1ab,
			})).To(Succeed())

			regs := &Regs{A1: SysMemIORead, A2: addr}
			Expect(k.SysMem(g, p, regs)).To(Succeed())
			Expect(regs.A3).To(Equal(uint64(0xab)))
		})

		It("should copy a RAM frame to the active swap device", func() {
			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemIOWrite, A2: vm.PhysicalAddress(1, 10), A3: 3,
			})).To(Succeed())

			Expect(k.SysMem(g, p, &Regs{
				A1: SysMemSwpOp, A2: 1, A3: 1,
			})).To(Succeed())

			v, err := k.SwapDevices()[0].Read(1, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(byte(3)))
		})

		It("should reject an unknown operation", func() {
			err := k.SysMem(g, p, &Regs{A1: 99})
			Expect(err).To(MatchError(ErrInvalidSyscall))
		})
	})

	It("should serve a syscall under its own lock", func() {
		regs := &Regs{A1: SysMemIncOp, A2: 0, A3: vm.PageSize}
		Expect(k.Syscall(p, regs)).To(Succeed())
		Expect(heapOf(k, p).End).To(Equal(uint64(vm.PageSize)))

		regs = &Regs{A1: SysMemIORead, A2: vm.PhysicalAddress(1, 0)}
		Expect(k.Syscall(p, regs)).To(Succeed())
		Expect(regs.A3).To(BeZero())

		Expect(k.Syscall(p, &Regs{A1: 0})).To(MatchError(ErrInvalidSyscall))
	})

	It("should switch the active swap device", func() {
		k = MakeBuilder().
			WithRAMFrames(1).
			WithSwapDevices(4, 4).
			Build("Kernel")
		p = k.Spawn()

		Expect(k.SetActiveSwap(1)).To(Succeed())
		_, _ = p.Allocate(0, 2*vm.PageSize)

		Expect(pteOf(k, p, 0).SwapType()).To(Equal(uint32(1)))
		Expect(k.Stats().ActiveSwap).To(Equal(1))
		Expect(k.SetActiveSwap(2)).To(HaveOccurred())
	})

	It("should report hooks from every component", func() {
		var positions []*hooking.HookPos

		k.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		_, _ = p.Allocate(0, 10)
		Expect(p.WriteByte(0, 0, 1)).To(Succeed())
		Expect(p.Release(0)).To(Succeed())

		Expect(positions).To(ContainElements(
			HookPosGrow, HookPosAllocate, HookPosRelease))
		Expect(len(positions)).To(BeNumerically(">", 3))
	})

	It("should summarize and dump its state", func() {
		_, _ = p.Allocate(0, 10)
		Expect(p.WriteByte(0, 0, 1)).To(Succeed())

		s := k.Stats()
		Expect(s.Processes).To(Equal(1))
		Expect(s.RAMUsed).To(Equal(1))
		Expect(s.Resident).To(Equal(1))
		Expect(s.Replacement).To(Equal("fifo"))
		Expect(s.Fit).To(Equal("first-fit"))
		Expect(s.Swap).To(HaveLen(1))

		buf := new(bytes.Buffer)
		k.Dump(buf)
		Expect(buf.String()).To(ContainSubstring("print_pgtbl pid 1"))
		Expect(buf.String()).To(ContainSubstring("region 0 [0, 10)"))
		Expect(buf.String()).To(ContainSubstring("replacement queue: 1 pages"))
		Expect(buf.String()).To(ContainSubstring("[TLB STATS] Hit:"))

		buf.Reset()
		Expect(k.DumpPageTable(buf, 1)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("[RAM] FPN: 1"))
		Expect(k.DumpPageTable(buf, 9)).To(MatchError(ErrNoSuchProcess))

		buf.Reset()
		k.DumpFrames(buf)
		Expect(buf.String()).To(ContainSubstring("Kernel.RAM: 1/64 frames used"))
	})

	It("should serve processes running concurrently", func() {
		k = MakeBuilder().WithRAMFrames(8).WithSwapDevices(512).Build("Kernel")

		var wg sync.WaitGroup

		for w := 0; w < 8; w++ {
			wg.Add(1)

			go func(seed int) {
				defer GinkgoRecover()
				defer wg.Done()

				proc := k.Spawn()

				for i := 0; i < 20; i++ {
					id := i % 5
					size := uint64(1 + (i*997+seed*131)%9000)

					_, err := proc.Allocate(id, size)
					Expect(err).NotTo(HaveOccurred())

					v := byte(seed*20 + i)
					Expect(proc.WriteByte(id, 0, v)).To(Succeed())
					Expect(proc.WriteByte(id, size-1, v)).To(Succeed())

					got, err := proc.ReadByte(id, 0)
					Expect(err).NotTo(HaveOccurred())
					Expect(got).To(Equal(v))

					got, err = proc.ReadByte(id, size-1)
					Expect(err).NotTo(HaveOccurred())
					Expect(got).To(Equal(v))

					Expect(proc.Release(id)).To(Succeed())
				}

				Expect(k.Exit(proc)).To(Succeed())
			}(w)
		}

		wg.Wait()

		Expect(k.RAM().NumUsed()).To(BeZero())
		Expect(k.SwapDevices()[0].NumUsed()).To(BeZero())
		Expect(k.Processes()).To(BeEmpty())
	})
})

var _ = Describe("Kernel with a mocked syscall", func() {
	var (
		mockCtrl *gomock.Controller
		sysMem   *MockSysMem
		k        *Kernel
		p        *Process
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sysMem = NewMockSysMem(mockCtrl)
		k = MakeBuilder().WithSysMem(sysMem).Build("Kernel")
		p = k.Spawn()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should ask for page-aligned growth", func() {
		sysMem.EXPECT().
			SysMem(gomock.Any(), p, &Regs{A1: SysMemIncOp, A2: 0, A3: vm.PageSize}).
			Return(nil)

		addr, err := p.Allocate(0, 100)

		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(BeZero())
		Expect(heapOf(k, p).Break).To(Equal(uint64(vm.PageSize)))
	})

	It("should leave no trace of a failed growth", func() {
		sysMem.EXPECT().
			SysMem(gomock.Any(), p, gomock.Any()).
			Return(ErrResourceExhausted)

		_, err := p.Allocate(0, 100)

		Expect(err).To(MatchError(ErrResourceExhausted))
		Expect(p.ctx.HandleFree(0)).To(BeTrue())
		Expect(heapOf(k, p).Break).To(BeZero())
	})

	It("should write through the physical I/O syscall", func() {
		sysMem.EXPECT().
			SysMem(gomock.Any(), p, gomock.Any()).
			Return(nil)
		_, _ = p.Allocate(0, 100)

		sysMem.EXPECT().
			SysMem(gomock.Any(), p, &Regs{
				A1: SysMemIOWrite,
				A2: vm.PhysicalAddress(1, 3),
				A3: 7,
			}).
			Return(nil)

		Expect(p.WriteByte(0, 3, 7)).To(Succeed())
	})

	It("should return the byte the read syscall produced", func() {
		sysMem.EXPECT().
			SysMem(gomock.Any(), p, gomock.Any()).
			Return(nil)
		_, _ = p.Allocate(0, 100)

		sysMem.EXPECT().
			SysMem(gomock.Any(), p, gomock.Any()).
			DoAndReturn(func(_ *mm.Guard, _ *Process, regs *Regs) error {
				Expect(regs.A1).To(Equal(SysMemIORead))
				regs.A3 = 0x5a
				return nil
			})

		v, err := p.ReadByte(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(byte(0x5a)))
	})
})
