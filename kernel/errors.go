package kernel

import (
	"errors"

	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/region"
)

// Errors returned by the kernel. Every error a kernel operation returns wraps
// one of them.
var (
	ErrInvalidHandle     = region.ErrInvalidHandle
	ErrOutOfBounds       = region.ErrOutOfBounds
	ErrOverlap           = region.ErrOverlap
	ErrResourceExhausted = mmu.ErrResourceExhausted
	ErrInvalidMapping    = vm.ErrInvalidMapping

	ErrInvalidSize    = errors.New("invalid size")
	ErrInvalidSyscall = errors.New("invalid syscall")
	ErrNoSuchProcess  = errors.New("no such process")
)
