// Package workload loads scripted processes and runs them concurrently on a
// kernel.
package workload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSyntax is returned for a malformed workload.
var ErrSyntax = errors.New("workload syntax error")

// Opcode identifies an instruction.
type Opcode int

// The instructions a process can execute.
const (
	// Calc burns one step without touching memory.
	Calc Opcode = iota
	// Alloc takes a region and a size.
	Alloc
	// Free takes a region.
	Free
	// Read takes a region and an offset.
	Read
	// Write takes a region, an offset, and a byte value.
	Write
	// Syscall takes the three syscall registers.
	Syscall
)

var opcodes = []struct {
	name  string
	nargs int
}{
	Calc:    {"calc", 0},
	Alloc:   {"alloc", 2},
	Free:    {"free", 1},
	Read:    {"read", 2},
	Write:   {"write", 3},
	Syscall: {"syscall", 3},
}

func (o Opcode) String() string {
	if o < 0 || int(o) >= len(opcodes) {
		return fmt.Sprintf("Opcode(%d)", int(o))
	}

	return opcodes[o].name
}

// An Instruction is one step of a program.
type Instruction struct {
	Op   Opcode
	Args [3]uint64
}

func (i Instruction) String() string {
	fields := []string{i.Op.String()}
	for _, a := range i.Args[:opcodes[i.Op].nargs] {
		fields = append(fields, strconv.FormatUint(a, 10))
	}

	return strings.Join(fields, " ")
}

// ParseInstruction parses a line such as "write 0 20 100".
func ParseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, fmt.Errorf("empty instruction: %w", ErrSyntax)
	}

	for op, desc := range opcodes {
		if desc.name != strings.ToLower(fields[0]) {
			continue
		}

		if len(fields)-1 != desc.nargs {
			return Instruction{}, fmt.Errorf("%q takes %d arguments: %w",
				desc.name, desc.nargs, ErrSyntax)
		}

		inst := Instruction{Op: Opcode(op)}

		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 0, 64)
			if err != nil {
				return Instruction{}, fmt.Errorf("%q argument %q: %w",
					desc.name, f, ErrSyntax)
			}

			inst.Args[i] = v
		}

		return inst, nil
	}

	return Instruction{}, fmt.Errorf("unknown instruction %q: %w",
		fields[0], ErrSyntax)
}

// A Program is the instruction list of one process.
type Program struct {
	Name         string
	Instructions []Instruction
}

// A Workload is a set of processes to run side by side.
type Workload struct {
	Processes []ProcessSpec `yaml:"processes"`
}

// ProcessSpec is how a process is written in a workload file.
type ProcessSpec struct {
	Name string `yaml:"name"`
	// Copies runs that many processes with the same program. 0 means 1.
	Copies  int      `yaml:"copies"`
	Program []string `yaml:"program"`
}

// Load reads a YAML workload file.
func Load(path string) (*Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workload: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a YAML workload.
func Parse(r io.Reader) (*Workload, error) {
	w := &Workload{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(w); err != nil {
		return nil, fmt.Errorf("decode workload: %v: %w", err, ErrSyntax)
	}

	return w, nil
}

// Programs expands the workload into one program per process.
func (w *Workload) Programs() ([]Program, error) {
	var programs []Program

	for i, spec := range w.Processes {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("proc%d", i)
		}

		insts := make([]Instruction, 0, len(spec.Program))

		for n, line := range spec.Program {
			inst, err := ParseInstruction(line)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", name, n+1, err)
			}

			insts = append(insts, inst)
		}

		copies := spec.Copies
		if copies < 0 {
			return nil, fmt.Errorf("%s: %d copies: %w", name, copies, ErrSyntax)
		}

		if copies <= 1 {
			programs = append(programs, Program{Name: name, Instructions: insts})
			continue
		}

		for c := 0; c < copies; c++ {
			programs = append(programs, Program{
				Name:         fmt.Sprintf("%s.%d", name, c),
				Instructions: insts,
			})
		}
	}

	return programs, nil
}
