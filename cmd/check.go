package cmd

import (
	"encoding/json"
	"fmt"

	"anki-sync/feature/integrity"

	"github.com/spf13/cobra"
)

var checkJSON bool

// checkCmd verifies the graph, the flashcard store and the asset source.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the graph, the flashcard store and the assets are reachable",
	Long:  `Runs the integrity checks of the sync environment. Outputs one line per check by default or a JSON report with --json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp("")
		if err != nil {
			return err
		}
		defer a.Close()

		conn, err := a.connector(ctx)
		if err != nil {
			return err
		}

		report := integrity.NewService(a.graph, conn, a.assets, a.db, a.cfg.Sync.ModelName, a.log).Run(ctx)

		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			for _, c := range report.Checks {
				fmt.Fprintf(out, "%-8s %-8s %s\n", c.Name, c.Status, c.Detail)
			}
		}
		if !report.Healthy {
			return fmt.Errorf("integrity check failed")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output the report as JSON")
	RootCmd.AddCommand(checkCmd)
}
