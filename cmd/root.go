package cmd

import (
	"fmt"
	"os"

	"anki-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configPath is the directory holding .env and config.yaml.
var configPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "anki-sync",
	Short: "Logseq to Anki flashcard sync",
	Long: `anki-sync reconciles the flashcards written in a Logseq graph with an
Anki collection. Notes are created, updated and deleted so that the
collection mirrors the graph.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Errors are printed through the console logger with ISO8601 timestamps.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing .env and config.yaml")
}
