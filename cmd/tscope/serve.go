package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/api"
	"github.com/albertsgarde/transformerscope/pkg/manifest"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/render"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve [snapshot|manifest]",
	Short: "Serve neuron pages and the JSON API",
	Long: `Serve the index page, one page per neuron and a JSON API over a payload.

The source is a snapshot, or a manifest (.yaml/.yml) that is rebuilt on
every reload. POST /api/payload/reload or SIGHUP re-reads the source and
swaps the new payload in; clients on /ws receive a payload_loaded event,
or reload_failed when the old payload stays in place. New clients are
greeted with the payload being served.

Routes:
  GET  /                                  Index of neurons, in rank order
  GET  /L{layer}/N{neuron}                Neuron page
  GET  /api/payload                       Dimensions, template and values
  GET  /api/values/:name[/:layer/:neuron] Value data, whole or per neuron
  GET  /api/ranking/:layer                Neurons of a layer in rank order
  POST /api/payload/reload                Reload the source
  GET  /ws                                Status events`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default: config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default: config)")
}

func isManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func runServe(cmd *cobra.Command, args []string) error {
	source := snapshotArg(args, 0)
	load := api.LoadFunc(payload.Load)
	if isManifest(source) {
		load = manifest.BuildFile
	}

	state := api.NewState(nil, source)
	state.SetLoader(load)
	if _, err := state.Reload(""); err != nil {
		return err
	}

	serverCfg := cfg.Server
	if serveHost != "" {
		serverCfg.Host = serveHost
	}
	if servePort != 0 {
		serverCfg.Port = servePort
	}
	srv := api.NewServer(serverCfg)

	pages := render.NewPages(render.ServerLinks, cfg.Render.Title, cfg.Render.HeatmapScale)
	pages.IndexTopK = cfg.Render.IndexTopK
	api.NewHandlers(state, pages).Register(srv.Router(), srv.Hub())
	srv.Hub().Follow(state)

	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("Serving %s at http://%s\n", source, srv.Addr())
	fmt.Println("Press Ctrl+C to stop, send SIGHUP to reload.")

	ctx, cancel := signalContext()
	defer cancel()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			// Failures are logged and broadcast by the state.
			state.Reload("")
		case <-ctx.Done():
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
