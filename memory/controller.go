package memory

// A Controller gives byte-level access to a physical device through physical
// addresses, as the kernel's I/O entry points see it.
type Controller interface {
	ReadPhysical(addr uint64) (byte, error)
	WritePhysical(addr uint64, value byte) error
}

var _ Controller = (*Pool)(nil)
