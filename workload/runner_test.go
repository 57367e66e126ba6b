package workload

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pagingsim/kernel"
)

type countingProgress struct {
	lock       sync.Mutex
	inProgress uint64
	finished   uint64
}

func (p *countingProgress) IncrementInProgress(amount uint64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.inProgress += amount
}

func (p *countingProgress) MoveInProgressToFinished(amount uint64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.inProgress -= amount
	p.finished += amount
}

func mustProgram(name string, lines ...string) Program {
	prog := Program{Name: name}

	for _, l := range lines {
		inst, err := ParseInstruction(l)
		Expect(err).NotTo(HaveOccurred())
		prog.Instructions = append(prog.Instructions, inst)
	}

	return prog
}

var _ = Describe("Runner", func() {
	var k *kernel.Kernel

	BeforeEach(func() {
		k = kernel.MakeBuilder().
			WithRAMFrames(4).
			WithSwapDevices(64).
			Build("K")
	})

	It("should run the sample workload", func() {
		w, err := Load("testdata/sample.yaml")
		Expect(err).NotTo(HaveOccurred())
		programs, err := w.Programs()
		Expect(err).NotTo(HaveOccurred())

		progress := &countingProgress{}
		results, err := NewRunner(k).WithProgress(progress).
			Run(context.Background(), programs)

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		Expect(results[0].Failed).To(BeZero())
		Expect(results[0].Executed).To(Equal(11))
		Expect(results[0].Reads).To(Equal([]ReadResult{
			{Region: 0, Offset: 20, Value: 100},
			{Region: 1, Offset: 5, Value: 102},
			{Region: 2, Offset: 20, Value: 7},
		}))

		for _, res := range results[1:] {
			Expect(res.Failed).To(BeZero())
			Expect(res.Reads).To(Equal([]ReadResult{
				{Region: 0, Offset: 8191, Value: 1},
			}))
		}

		Expect(k.Processes()).To(BeEmpty())
		Expect(k.RAM().NumUsed()).To(BeZero())
		Expect(progress.inProgress).To(BeZero())
		Expect(progress.finished).To(Equal(uint64(19)))
	})

	It("should record a failed instruction and go on", func() {
		prog := mustProgram("p", "alloc 0 10", "free 5", "write 0 0 9", "read 0 0")

		results, err := NewRunner(k).Run(context.Background(), []Program{prog})

		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Failed).To(Equal(1))
		Expect(results[0].Errors[0]).To(MatchError(kernel.ErrInvalidHandle))
		Expect(results[0].Reads).To(HaveLen(1))
	})

	It("should stop at the first failure when strict", func() {
		progress := &countingProgress{}
		prog := mustProgram("p", "alloc 0 10", "read 0 10", "calc")

		results, err := NewRunner(k).
			WithStrict(true).
			WithProgress(progress).
			Run(context.Background(), []Program{prog})

		Expect(err).To(MatchError(kernel.ErrOutOfBounds))
		Expect(results[0].Executed).To(Equal(2))
		Expect(progress.inProgress).To(BeZero())
		Expect(progress.finished).To(Equal(uint64(3)))
		Expect(k.Processes()).To(BeEmpty())
	})

	It("should not start instructions once cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := NewRunner(k).Run(ctx, []Program{
			mustProgram("a", "alloc 0 10"),
			mustProgram("b", "alloc 0 10"),
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(results[0].Executed).To(BeZero())
		Expect(results[1].Executed).To(BeZero())
	})

	It("should keep processes alive on request", func() {
		results, err := NewRunner(k).
			WithKeepAlive(true).
			Run(context.Background(), []Program{
				mustProgram("p", "syscall 2 0 4096", "alloc 0 10"),
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Failed).To(BeZero())

		p, err := k.Process(results[0].PID)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.PID()).To(Equal(results[0].PID))
		Expect(k.RAM().NumUsed()).To(Equal(1))
	})

	It("should run many processes side by side", func() {
		var programs []Program
		for i := 0; i < 16; i++ {
			programs = append(programs, mustProgram("p",
				"alloc 0 5000", "write 0 4999 3", "alloc 1 10",
				"read 0 4999", "free 0", "free 1"))
		}

		results, err := NewRunner(k).Run(context.Background(), programs)

		Expect(err).NotTo(HaveOccurred())
		for _, res := range results {
			Expect(res.Failed).To(BeZero())
			Expect(res.Reads[0].Value).To(Equal(byte(3)))
		}
		Expect(k.SwapDevices()[0].NumUsed()).To(BeZero())
	})
})
