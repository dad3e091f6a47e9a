package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"anki-sync/core/logger"
	"anki-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the sync command
	syncYes      bool
	syncDryRun   bool
	syncSnapshot string
)

// syncCmd runs one reconciliation between the graph and the collection.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the graph's flashcards to Anki",
	Long: `Extracts cloze and card blocks from the graph, compares them with the
notes of the collection and creates, updates or deletes notes so both match.

Examples:
  # Interactive sync against the running Logseq and Anki apps
  anki-sync sync

  # Preview the plan without writing anything
  anki-sync sync --dry-run

  # Non-interactive sync of an exported graph into the local collection
  SYNC_DESTINATION=collection anki-sync sync --snapshot graph.yaml --yes`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncYes, "yes", false, "Accept every change and confirmation (non-interactive)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Plan the sync without writing to either side")
	syncCmd.Flags().StringVar(&syncSnapshot, "snapshot", "", "Read the graph from a YAML snapshot instead of the Logseq API")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	a, err := newApp(syncSnapshot)
	if err != nil {
		return err
	}
	defer a.Close()

	runID := logger.NewRunID()
	engine, err := a.engine(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	summary, runErr := engine.Run(ctx, reconcile.Options{
		RunID:     runID,
		DryRun:    syncDryRun,
		Confirmed: syncYes,
	})

	// Ids written before a failure still need to reach the snapshot.
	if !syncDryRun {
		if err := a.saveSnapshot(); err != nil {
			a.log.Error("Failed to persist note ids", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed() > 0 {
		return fmt.Errorf("%d notes failed to sync", summary.Failed())
	}
	return nil
}
