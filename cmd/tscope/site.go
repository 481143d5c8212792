package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/render"
)

var siteWorkers int

var siteCmd = &cobra.Command{
	Use:   "site [snapshot] [dir]",
	Short: "Write a static HTML site for a snapshot",
	Long: `Write index.html, static/style.css and one page per neuron
(L{layer}/N{neuron}.html) into dir. Links are relative, so the site can be
opened from disk or served by any static file server.

Examples:
  tscope site                        # Configured snapshot and output dir
  tscope site chess.tsp out/         # Explicit paths
  tscope site chess.tsp out/ -w 4    # Four render workers`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSite,
}

func init() {
	rootCmd.AddCommand(siteCmd)
	siteCmd.Flags().IntVarP(&siteWorkers, "workers", "w", 0, "Layers rendered concurrently (default: config, then all CPUs)")
}

func runSite(cmd *cobra.Command, args []string) error {
	path := snapshotArg(args, 0)
	dir := cfg.Site.OutputDir
	if len(args) > 1 {
		dir = args[1]
	}
	workers := cfg.Site.Workers
	if siteWorkers > 0 {
		workers = siteWorkers
	}

	pl, err := loadSnapshot(path)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := render.SiteOptions{
		Workers:      workers,
		Title:        cfg.Render.Title,
		HeatmapScale: cfg.Render.HeatmapScale,
		IndexTopK:    cfg.Render.IndexTopK,
	}
	if cfg.Site.Progress {
		opts.Progress = os.Stderr
	}
	if err := render.GenerateSite(ctx, dir, pl, opts); err != nil {
		return err
	}
	fmt.Printf("Site written to %s\n", dir)
	return nil
}
