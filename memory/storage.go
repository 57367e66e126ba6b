package memory

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an access falls outside a storage or pool.
var ErrOutOfRange = errors.New("access beyond the storage capacity")

// A Storage keeps the bytes of a physical device.
//
// The storage is managed in units of one page. A unit that has never been
// written reads as zeros and no memory is allocated for it.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity in bytes.
func NewStorage(capacity, unitSize uint64) *Storage {
	if unitSize == 0 || unitSize&(unitSize-1) != 0 {
		panic("unit size must be a power of 2")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of addressable bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) mustBeInRange(addr, length uint64) error {
	if length > s.capacity || addr > s.capacity-length {
		return fmt.Errorf("%w: [%#x, %#x) capacity %#x",
			ErrOutOfRange, addr, addr+length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(baseAddr uint64, create bool) []byte {
	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

// Read returns length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	done := uint64(0)

	for done < length {
		baseAddr, inUnitAddr := s.parseAddress(address + done)
		n := min(length-done, s.unitSize-inUnitAddr)

		if unit := s.unit(baseAddr, false); unit != nil {
			copy(res[done:done+n], unit[inUnitAddr:inUnitAddr+n])
		}

		done += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	done := uint64(0)

	for done < length {
		baseAddr, inUnitAddr := s.parseAddress(address + done)
		n := min(length-done, s.unitSize-inUnitAddr)

		unit := s.unit(baseAddr, true)
		copy(unit[inUnitAddr:inUnitAddr+n], data[done:done+n])

		done += n
	}

	return nil
}

// Zero clears length bytes starting at address. Units that are fully covered
// are dropped.
func (s *Storage) Zero(address, length uint64) error {
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	done := uint64(0)

	for done < length {
		baseAddr, inUnitAddr := s.parseAddress(address + done)
		n := min(length-done, s.unitSize-inUnitAddr)

		if n == s.unitSize {
			delete(s.data, baseAddr)
		} else if unit := s.unit(baseAddr, false); unit != nil {
			clear(unit[inUnitAddr : inUnitAddr+n])
		}

		done += n
	}

	return nil
}

// NumAllocatedUnits returns how many units hold data.
func (s *Storage) NumAllocatedUnits() int {
	return len(s.data)
}
