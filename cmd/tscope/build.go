package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertsgarde/transformerscope/pkg/manifest"
	"github.com/albertsgarde/transformerscope/pkg/shell"
	"github.com/albertsgarde/transformerscope/pkg/spinner"
)

var (
	buildOutput string
	buildForce  bool
)

var buildCmd = &cobra.Command{
	Use:   "build <manifest>",
	Short: "Build a payload snapshot from a manifest",
	Long: `Build a payload from a YAML manifest and write it as a snapshot.

The manifest gives the network dimensions, the neuron template, an optional
ranking value and the values to store. Value data is inline, in a JSON or
YAML file, or in a safetensors tensor.

Examples:
  tscope build manifest.yaml                  # Writes the configured snapshot
  tscope build manifest.yaml -o chess.tsp     # Explicit output
  tscope build manifest.yaml -o chess.tsp -f  # Overwrite without asking`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Snapshot path (default: config snapshot)")
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Overwrite an existing snapshot without asking")
}

func runBuild(cmd *cobra.Command, args []string) error {
	out := buildOutput
	if out == "" {
		out = cfg.Snapshot
	}

	proceed, err := shell.ConfirmOverwrite(shell.NewInteractivePrompter(), out, buildForce)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Println("Aborted.")
		return nil
	}

	sp := spinner.New("Building payload from " + args[0])
	sp.Start()
	pl, err := manifest.BuildFile(args[0])
	if err != nil {
		sp.Fail("Build failed")
		return err
	}
	if err := pl.Save(out); err != nil {
		sp.Fail("Failed to write " + out)
		return err
	}
	sp.Success(fmt.Sprintf("Wrote %s (%d layers x %d neurons, %d values)",
		out, pl.NumLayers(), pl.NumMLPNeurons(), len(pl.ValueNames())))
	return nil
}
