package workload

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instruction parsing", func() {
	DescribeTable("valid instructions",
		func(line string, want Instruction) {
			inst, err := ParseInstruction(line)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst).To(Equal(want))
		},
		Entry("calc", "calc", Instruction{Op: Calc}),
		Entry("alloc", "alloc 0 300", Instruction{Op: Alloc, Args: [3]uint64{0, 300}}),
		Entry("free", "free 3", Instruction{Op: Free, Args: [3]uint64{3}}),
		Entry("read", "read 1 20", Instruction{Op: Read, Args: [3]uint64{1, 20}}),
		Entry("write", "WRITE 1 20 0x64",
			Instruction{Op: Write, Args: [3]uint64{1, 20, 100}}),
		Entry("syscall", "syscall 2 0 4096",
			Instruction{Op: Syscall, Args: [3]uint64{2, 0, 4096}}),
	)

	DescribeTable("malformed instructions",
		func(line string) {
			_, err := ParseInstruction(line)
			Expect(err).To(MatchError(ErrSyntax))
		},
		Entry("empty", "  "),
		Entry("unknown", "jump 4"),
		Entry("too few arguments", "alloc 0"),
		Entry("too many arguments", "free 0 1"),
		Entry("not a number", "read 0 x"),
	)

	It("should print an instruction the way it is written", func() {
		inst, _ := ParseInstruction("write  1 20   100")
		Expect(inst.String()).To(Equal("write 1 20 100"))
		Expect(Opcode(42).String()).To(Equal("Opcode(42)"))
	})
})

var _ = Describe("Workload", func() {
	It("should load a workload file", func() {
		w, err := Load("testdata/sample.yaml")
		Expect(err).NotTo(HaveOccurred())

		programs, err := w.Programs()
		Expect(err).NotTo(HaveOccurred())

		Expect(programs).To(HaveLen(3))
		Expect(programs[0].Name).To(Equal("writer"))
		Expect(programs[0].Instructions).To(HaveLen(11))
		Expect(programs[1].Name).To(Equal("grower.0"))
		Expect(programs[2].Name).To(Equal("grower.1"))
	})

	It("should name unnamed processes", func() {
		w, err := Parse(strings.NewReader("processes:\n  - program: [calc]\n"))
		Expect(err).NotTo(HaveOccurred())

		programs, err := w.Programs()
		Expect(err).NotTo(HaveOccurred())
		Expect(programs[0].Name).To(Equal("proc0"))
	})

	It("should point at the bad line", func() {
		w, err := Parse(strings.NewReader(
			"processes:\n  - name: p\n    program: [calc, fly]\n"))
		Expect(err).NotTo(HaveOccurred())

		_, err = w.Programs()
		Expect(err).To(MatchError(ErrSyntax))
		Expect(err.Error()).To(ContainSubstring("p line 2"))
	})

	It("should reject unknown keys", func() {
		_, err := Parse(strings.NewReader("procs: []\n"))
		Expect(err).To(MatchError(ErrSyntax))
	})

	It("should fail on a missing file", func() {
		_, err := Load("testdata/none.yaml")
		Expect(err).To(HaveOccurred())
	})
})
