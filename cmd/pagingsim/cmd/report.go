package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pagingsim/datarecording"
)

func init() {
	rootCmd.AddCommand(newReportCommand())
}

func newReportCommand() *cobra.Command {
	var (
		pid   uint32
		limit int
	)

	cmd := &cobra.Command{
		Use:   "report <database.sqlite3>",
		Short: "Summarize the paging events of a recording.",
		Long: `report reads a database written by "run --record" and prints, ` +
			`per process, the allocations, faults, swaps and TLB lookups. ` +
			`With --pid it lists the page events of one process instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("open recording: %w", err)
			}

			reader := datarecording.NewReader(args[0])
			defer reader.Close()

			datarecording.MapPagingTables(reader)

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("pid") {
				events, total, err := datarecording.PageEventsOf(
					cmd.Context(), reader, pid, limit)
				if err != nil {
					return err
				}

				for _, e := range events {
					fmt.Fprintf(out, "%d\t%s\t%s\tpgn %d\tfpn %d\tswap %d:%d\n",
						e.Seq, e.What, e.Kind, e.PageNumber, e.FrameNumber,
						e.SwapType, e.SwapOffset)
				}

				fmt.Fprintf(out, "%d of %d page events of pid %d\n",
					len(events), total, pid)

				return nil
			}

			summaries, err := datarecording.SummarizePaging(cmd.Context(), reader)
			if err != nil {
				return err
			}

			return datarecording.WriteSummaries(out, summaries)
		},
	}

	cmd.Flags().Uint32Var(&pid, "pid", 0, "list the page events of this process")
	cmd.Flags().IntVar(&limit, "limit", 0, "list at most this many events")

	return cmd
}
