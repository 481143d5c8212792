package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell [snapshot]",
	Short: "Explore a snapshot interactively",
	Long: `Open an interactive explorer over a snapshot. Type /help inside the
shell for commands; Tab completes commands and value names.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	pl, err := loadSnapshot(snapshotArg(args, 0))
	if err != nil {
		return err
	}

	homeDir, _ := os.UserHomeDir()
	sh, err := shell.New(pl, shell.Config{
		HistoryFile: filepath.Join(homeDir, ".tscope_history"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := sh.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
