package workload

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm"
)

// Progress receives the number of instructions started and finished.
type Progress interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// A ReadResult is the byte a read instruction returned.
type ReadResult struct {
	Region int
	Offset uint64
	Value  byte
}

// ProcessResult is what one process did.
type ProcessResult struct {
	Name     string
	PID      vm.PID
	Executed int
	Failed   int
	Reads    []ReadResult
	Errors   []error
}

// A Runner runs every program of a workload as a process of its own, each in
// its own goroutine.
type Runner struct {
	kernel    *kernel.Kernel
	progress  Progress
	strict    bool
	keepAlive bool
	log       *zap.Logger
}

// NewRunner creates a runner on k.
func NewRunner(k *kernel.Kernel) *Runner {
	return &Runner{kernel: k, log: zap.NewNop()}
}

// WithProgress reports instructions to p.
func (r *Runner) WithProgress(p Progress) *Runner {
	r.progress = p
	return r
}

// WithStrict makes the first failing instruction stop the whole run. By
// default a failed instruction is recorded and the process moves on.
func (r *Runner) WithStrict(strict bool) *Runner {
	r.strict = strict
	return r
}

// WithKeepAlive leaves the processes running after their last instruction,
// so that their memory can still be dumped.
func (r *Runner) WithKeepAlive(keep bool) *Runner {
	r.keepAlive = keep
	return r
}

// WithLogger sets the logger of the runner.
func (r *Runner) WithLogger(log *zap.Logger) *Runner {
	r.log = logging.OrNop(log)
	return r
}

// Run executes the programs and returns one result per program, in order.
// Cancelling ctx stops every process before its next instruction.
func (r *Runner) Run(
	ctx context.Context,
	programs []Program,
) ([]ProcessResult, error) {
	results := make([]ProcessResult, len(programs))

	g, ctx := errgroup.WithContext(ctx)

	for i := range programs {
		prog := programs[i]
		res := &results[i]

		g.Go(func() error {
			return r.runProcess(ctx, prog, res)
		})
	}

	err := g.Wait()

	return results, err
}

func (r *Runner) runProcess(
	ctx context.Context,
	prog Program,
	res *ProcessResult,
) error {
	p := r.kernel.Spawn()
	res.Name = prog.Name
	res.PID = p.PID()

	log := r.log.With(
		zap.String("process", prog.Name),
		zap.Uint32("pid", uint32(p.PID())))
	log.Info("process started", zap.Int("instructions", len(prog.Instructions)))

	if r.progress != nil {
		r.progress.IncrementInProgress(uint64(len(prog.Instructions)))
	}

	err := r.execute(ctx, p, prog, res, log)

	if !r.keepAlive {
		if exitErr := r.kernel.Exit(p); exitErr != nil && err == nil {
			err = exitErr
		}
	}

	log.Info("process finished",
		zap.Int("executed", res.Executed),
		zap.Int("failed", res.Failed))

	return err
}

func (r *Runner) execute(
	ctx context.Context,
	p *kernel.Process,
	prog Program,
	res *ProcessResult,
	log *zap.Logger,
) error {
	for n, inst := range prog.Instructions {
		if err := ctx.Err(); err != nil {
			if r.progress != nil {
				r.progress.MoveInProgressToFinished(
					uint64(len(prog.Instructions) - n))
			}

			return err
		}

		err := r.step(p, inst, res)
		res.Executed++

		if r.progress != nil {
			r.progress.MoveInProgressToFinished(1)
		}

		if err == nil {
			continue
		}

		res.Failed++
		res.Errors = append(res.Errors, fmt.Errorf("%s: %w", inst, err))
		log.Debug("instruction failed",
			zap.Stringer("instruction", inst), zap.Error(err))

		if r.strict || errors.Is(err, kernel.ErrNoSuchProcess) {
			if r.progress != nil {
				r.progress.MoveInProgressToFinished(
					uint64(len(prog.Instructions) - n - 1))
			}

			return fmt.Errorf("%s: %s: %w", prog.Name, inst, err)
		}
	}

	return nil
}

func (r *Runner) step(p *kernel.Process, inst Instruction, res *ProcessResult) error {
	a := inst.Args

	switch inst.Op {
	case Calc:
		return nil
	case Alloc:
		_, err := p.Allocate(int(a[0]), a[1])
		return err
	case Free:
		return p.Release(int(a[0]))
	case Read:
		v, err := p.ReadByte(int(a[0]), a[1])
		if err != nil {
			return err
		}

		res.Reads = append(res.Reads, ReadResult{
			Region: int(a[0]),
			Offset: a[1],
			Value:  v,
		})

		return nil
	case Write:
		return p.WriteByte(int(a[0]), a[1], byte(a[2]))
	case Syscall:
		return r.kernel.Syscall(p, &kernel.Regs{A1: a[0], A2: a[1], A3: a[2]})
	default:
		panic(fmt.Sprintf("unknown opcode %d", inst.Op))
	}
}
