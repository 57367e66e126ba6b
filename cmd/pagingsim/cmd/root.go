// Package cmd provides the command-line interface of the paging simulator.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagingsim",
	Short: "pagingsim simulates the paged virtual memory of an operating system.",
	Long: `pagingsim runs scripted processes on a simulated memory subsystem ` +
		`with a five-level page table, a TLB, RAM and swap frame pools, and ` +
		`demand paging. It can record the paging events to SQLite and serve ` +
		`the memory state over HTTP while the workload runs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits through atexit so that registered recorders flush.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
