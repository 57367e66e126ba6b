package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
)

var layoutCmd = &cobra.Command{
	Use:   "dump-layout [address...]",
	Short: "Print the address layout, or how addresses split into indices.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			printLayout(out)
			return nil
		}

		for _, a := range args {
			addr, err := strconv.ParseUint(a, 0, 64)
			if err != nil {
				return fmt.Errorf("address %q: %w", a, err)
			}

			printAddress(out, addr)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}

func printLayout(w io.Writer) {
	fmt.Fprintf(w, "page size        %d bytes\n", vm.PageSize)
	fmt.Fprintf(w, "address bits     %d\n", vm.AddressBits)

	for l := vm.PGD; l <= vm.PT; l++ {
		fmt.Fprintf(w, "%-4s index      bits %d-%d\n",
			l, l.Shift()+vm.LevelBits-1, l.Shift())
	}

	fmt.Fprintf(w, "offset           bits %d-0\n", vm.Log2PageSize-1)
	fmt.Fprintf(w, "max RAM frames   %d\n", vm.MaxFrameNumber)
	fmt.Fprintf(w, "max swap frames  %d\n", vm.MaxSwapOffset)
	fmt.Fprintf(w, "swap devices     %d\n", mmu.MaxSwapDevices)
	fmt.Fprintf(w, "syscall ops      map=%d inc=%d swp=%d io_read=%d io_write=%d\n",
		kernel.SysMemMapOp, kernel.SysMemIncOp, kernel.SysMemSwpOp,
		kernel.SysMemIORead, kernel.SysMemIOWrite)
}

func printAddress(w io.Writer, addr uint64) {
	idx := vm.Indices(addr)

	fmt.Fprintf(w, "%#x: PGD=%03x P4D=%03x PUD=%03x PMD=%03x PT=%03x "+
		"PGN=%d offset=%d\n",
		addr, idx[vm.PGD], idx[vm.P4D], idx[vm.PUD], idx[vm.PMD], idx[vm.PT],
		vm.PageNumber(addr), vm.PageOffset(addr))
}
