package cmd

import (
	"fmt"

	"anki-sync/feature/prompt"

	"github.com/spf13/cobra"
)

var reportLimit int

// reportCmd prints the most recent sync summaries from the journal.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the history of previous syncs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("")
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.journal.List(reportLimit)
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt.RenderHistory(summaries))
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportLimit, "limit", 10, "Number of syncs to show")
	RootCmd.AddCommand(reportCmd)
}
