package region

import "fmt"

// MaxSymbols is the capacity of a symbol table.
const MaxSymbols = 30

// A Symbol is a named region together with its handle.
type Symbol struct {
	ID int
	Region
}

// A SymbolTable maps region handles to named regions. A zero region marks an
// unallocated handle.
type SymbolTable struct {
	regions [MaxSymbols]Region
}

func handleMustBeInRange(id int) error {
	if id < 0 || id >= MaxSymbols {
		return fmt.Errorf("region %d: %w", id, ErrInvalidHandle)
	}

	return nil
}

// Get returns the named region of an allocated handle.
func (t *SymbolTable) Get(id int) (Region, error) {
	if err := handleMustBeInRange(id); err != nil {
		return Region{}, err
	}

	r := t.regions[id]
	if r.IsZero() {
		return Region{}, fmt.Errorf("region %d not allocated: %w",
			id, ErrInvalidHandle)
	}

	return r, nil
}

// IsFree reports whether a handle is valid and unallocated.
func (t *SymbolTable) IsFree(id int) bool {
	if handleMustBeInRange(id) != nil {
		return false
	}

	return t.regions[id].IsZero()
}

// Set binds a handle to a region.
func (t *SymbolTable) Set(id int, r Region) error {
	if err := handleMustBeInRange(id); err != nil {
		return err
	}

	t.regions[id] = r

	return nil
}

// Clear unbinds an allocated handle and returns the region it named.
func (t *SymbolTable) Clear(id int) (Region, error) {
	r, err := t.Get(id)
	if err != nil {
		return Region{}, err
	}

	t.regions[id] = Region{}

	return r, nil
}

// Live lists the allocated handles in ascending order.
func (t *SymbolTable) Live() []Symbol {
	var symbols []Symbol

	for id, r := range t.regions {
		if !r.IsZero() {
			symbols = append(symbols, Symbol{ID: id, Region: r})
		}
	}

	return symbols
}
