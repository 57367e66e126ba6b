package memory

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sarchlab/pagingsim/mem/vm"
)

// Errors reported by a Pool.
var (
	ErrExhausted = errors.New("no free frame")
	ErrNotInUse  = errors.New("frame not in use")
)

// An Owner is the memory context a frame is lent to.
type Owner interface {
	PID() vm.PID
}

// A Frame is one page-sized unit of a pool.
type Frame struct {
	Number uint32
	Owner  Owner
}

// A Pool manages the frames of one physical device, either RAM or a swap
// device. Frames are numbered from 1 to NumFrames; frame 0 is never handed
// out, so a zero frame number always means "no frame". Every frame is on
// exactly one of the free list and the used list.
type Pool struct {
	sync.Mutex

	name      string
	numFrames uint32
	storage   *Storage

	free []uint32
	used map[uint32]*Frame
}

// NewPool creates a pool of numFrames page-sized frames.
func NewPool(name string, numFrames uint32) *Pool {
	if numFrames == 0 {
		panic("a pool needs at least one frame")
	}

	p := &Pool{
		name:      name,
		numFrames: numFrames,
		storage: NewStorage(
			(uint64(numFrames)+1)*vm.PageSize, vm.PageSize),
		free: make([]uint32, 0, numFrames),
		used: make(map[uint32]*Frame),
	}

	for fpn := numFrames; fpn >= 1; fpn-- {
		p.free = append(p.free, fpn)
	}

	return p
}

// Name returns the name of the device.
func (p *Pool) Name() string {
	return p.name
}

// NumFrames returns the capacity of the pool in frames.
func (p *Pool) NumFrames() uint32 {
	return p.numFrames
}

// NumFree returns how many frames are on the free list.
func (p *Pool) NumFree() int {
	p.Lock()
	defer p.Unlock()

	return len(p.free)
}

// NumUsed returns how many frames are on the used list.
func (p *Pool) NumUsed() int {
	p.Lock()
	defer p.Unlock()

	return len(p.used)
}

// Acquire moves a frame from the free list to the used list and lends it to
// owner. The most recently released frame is reused first.
func (p *Pool) Acquire(owner Owner) (uint32, error) {
	p.Lock()
	defer p.Unlock()

	if len(p.free) == 0 {
		return 0, fmt.Errorf("%s: %w", p.name, ErrExhausted)
	}

	fpn := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[fpn] = &Frame{Number: fpn, Owner: owner}

	return fpn, nil
}

// Release returns a frame to the free list and clears its owner.
func (p *Pool) Release(fpn uint32) error {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.used[fpn]; !ok {
		return fmt.Errorf("%s: frame %d: %w", p.name, fpn, ErrNotInUse)
	}

	delete(p.used, fpn)
	p.free = append(p.free, fpn)

	return nil
}

// Owner returns the context a used frame is lent to.
func (p *Pool) Owner(fpn uint32) (Owner, bool) {
	p.Lock()
	defer p.Unlock()

	f, ok := p.used[fpn]
	if !ok {
		return nil, false
	}

	return f.Owner, true
}

// SetOwner hands a used frame over to another context.
func (p *Pool) SetOwner(fpn uint32, owner Owner) error {
	p.Lock()
	defer p.Unlock()

	f, ok := p.used[fpn]
	if !ok {
		return fmt.Errorf("%s: frame %d: %w", p.name, fpn, ErrNotInUse)
	}

	f.Owner = owner

	return nil
}

// InUse reports whether a frame is on the used list.
func (p *Pool) InUse(fpn uint32) bool {
	p.Lock()
	defer p.Unlock()

	_, ok := p.used[fpn]

	return ok
}

func (p *Pool) frameAddress(fpn uint32, offset uint64) (uint64, error) {
	if fpn == 0 || fpn > p.numFrames {
		return 0, fmt.Errorf("%s: frame %d: %w", p.name, fpn, ErrOutOfRange)
	}

	if offset >= vm.PageSize {
		return 0, fmt.Errorf("%s: offset %d: %w", p.name, offset, ErrOutOfRange)
	}

	return vm.PhysicalAddress(fpn, offset), nil
}

// Read returns the byte at offset inside frame fpn.
func (p *Pool) Read(fpn uint32, offset uint64) (byte, error) {
	addr, err := p.frameAddress(fpn, offset)
	if err != nil {
		return 0, err
	}

	p.Lock()
	defer p.Unlock()

	data, err := p.storage.Read(addr, 1)
	if err != nil {
		return 0, err
	}

	return data[0], nil
}

// Write stores value at offset inside frame fpn.
func (p *Pool) Write(fpn uint32, offset uint64, value byte) error {
	addr, err := p.frameAddress(fpn, offset)
	if err != nil {
		return err
	}

	p.Lock()
	defer p.Unlock()

	return p.storage.Write(addr, []byte{value})
}

// ReadPhysical reads the byte at a physical address of the device.
func (p *Pool) ReadPhysical(addr uint64) (byte, error) {
	fpn, offset := vm.SplitPhysicalAddress(addr)
	return p.Read(fpn, offset)
}

// WritePhysical writes the byte at a physical address of the device.
func (p *Pool) WritePhysical(addr uint64, value byte) error {
	fpn, offset := vm.SplitPhysicalAddress(addr)
	return p.Write(fpn, offset, value)
}

// ReadFrame returns a copy of the whole content of frame fpn.
func (p *Pool) ReadFrame(fpn uint32) ([]byte, error) {
	addr, err := p.frameAddress(fpn, 0)
	if err != nil {
		return nil, err
	}

	p.Lock()
	defer p.Unlock()

	return p.storage.Read(addr, vm.PageSize)
}

// WriteFrame overwrites the whole content of frame fpn.
func (p *Pool) WriteFrame(fpn uint32, data []byte) error {
	if len(data) != vm.PageSize {
		return fmt.Errorf("%s: frame data of %d bytes: %w",
			p.name, len(data), ErrOutOfRange)
	}

	addr, err := p.frameAddress(fpn, 0)
	if err != nil {
		return err
	}

	p.Lock()
	defer p.Unlock()

	return p.storage.Write(addr, data)
}

// ZeroFrame clears frame fpn.
func (p *Pool) ZeroFrame(fpn uint32) error {
	addr, err := p.frameAddress(fpn, 0)
	if err != nil {
		return err
	}

	p.Lock()
	defer p.Unlock()

	return p.storage.Zero(addr, vm.PageSize)
}

// FreeFrames returns the free list, next frame to be handed out first.
func (p *Pool) FreeFrames() []uint32 {
	p.Lock()
	defer p.Unlock()

	list := make([]uint32, len(p.free))
	for i, fpn := range p.free {
		list[len(p.free)-1-i] = fpn
	}

	return list
}

// UsedFrames returns the used list sorted by frame number.
func (p *Pool) UsedFrames() []Frame {
	p.Lock()
	defer p.Unlock()

	list := make([]Frame, 0, len(p.used))
	for _, f := range p.used {
		list = append(list, *f)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Number < list[j].Number
	})

	return list
}

// Dump writes the used list of the pool.
func (p *Pool) Dump(w io.Writer) {
	used := p.UsedFrames()

	fmt.Fprintf(w, "%s: %d/%d frames used\n", p.name, len(used), p.numFrames)

	for _, f := range used {
		if f.Owner == nil {
			fmt.Fprintf(w, "\tfp[%d]\n", f.Number)
			continue
		}

		fmt.Fprintf(w, "\tfp[%d] pid %d\n", f.Number, f.Owner.PID())
	}
}
