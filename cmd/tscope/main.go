// TransformerScope - neuron pages for transformer MLP layers
//
// tscope turns producer data into payloads and presents them:
//   - build:   manifest (YAML + data files) -> payload snapshot
//   - site:    snapshot -> static HTML site
//   - serve:   snapshot -> HTTP pages, JSON API and reload events
//   - shell:   snapshot -> interactive explorer
//   - inspect: snapshot -> summary as text, YAML or JSON
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/config"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/spinner"
)

const version = "0.1.0"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tscope",
	Short: "Build, serve and explore neuron pages for transformer MLP layers",
	Long: `TransformerScope stores per-network, per-layer and per-neuron values
together with a neuron template, and renders one page per MLP neuron.

Examples:
  tscope build manifest.yaml -o payload.tsp   # Build a snapshot
  tscope site payload.tsp site/               # Write a static site
  tscope serve payload.tsp                    # Serve pages and the JSON API
  tscope shell payload.tsp                    # Explore interactively
  tscope inspect payload.tsp --format yaml    # Summarise a snapshot`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		var err error
		cfg, err = config.LoadOrDefault(configPath)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tscope %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./tscope.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		tserrors.Display(err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nShutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// snapshotArg returns args[i], or the configured snapshot when absent.
func snapshotArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return cfg.Snapshot
}

// loadSnapshot reads a snapshot behind a spinner.
func loadSnapshot(path string) (*payload.Payload, error) {
	sp := spinner.New("Loading " + path)
	sp.Start()
	pl, err := payload.Load(path)
	if err != nil {
		sp.Fail("Failed to load " + path)
		return nil, err
	}
	sp.Success(fmt.Sprintf("Loaded %s (%d layers x %d neurons)", path, pl.NumLayers(), pl.NumMLPNeurons()))
	return pl, nil
}
