package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/export"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/shell"
)

// Export flags
var (
	exportOutput    string
	exportForce     bool
	exportTSV       bool
	exportPrecision int
	exportScale     float32
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export payload values for other tools",
	Long: `Export a stored value as CSV, or a per-neuron metric as an SVG heatmap.

Examples:
  tscope export csv chess.tsp activations -o act.csv
  tscope export csv chess.tsp metric --tsv
  tscope export svg chess.tsp metric -o metric.svg`,
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv <snapshot> <value>",
	Short: "Write a value as long-format CSV",
	Long: `Write one row per element: the layer and neuron columns its scope
implies, one column per remaining axis (i0, i1, ...) and the value. NaN is
written as NA.`,
	Args: cobra.ExactArgs(2),
	RunE: runExportCSV,
}

var exportSVGCmd = &cobra.Command{
	Use:   "svg <snapshot> <value>",
	Short: "Draw a neuron-scoped f32 scalar as a layer x neuron heatmap",
	Args:  cobra.ExactArgs(2),
	RunE:  runExportSVG,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCSVCmd)
	exportCmd.AddCommand(exportSVGCmd)

	exportCmd.PersistentFlags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.PersistentFlags().BoolVarP(&exportForce, "force", "f", false, "Overwrite an existing file without asking")

	exportCSVCmd.Flags().BoolVar(&exportTSV, "tsv", false, "Tab-separated output")
	exportCSVCmd.Flags().IntVar(&exportPrecision, "precision", -1, "Decimals for f32 values (-1: shortest exact form)")

	exportSVGCmd.Flags().Float32Var(&exportScale, "scale", 0, "Color scale (0: fit the largest magnitude)")
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	pl, err := payload.Load(args[0])
	if err != nil {
		return err
	}
	config := export.DefaultCSVConfig()
	config.Precision = exportPrecision
	if exportTSV {
		config.Dialect = export.DialectTSV
	}
	return withOutput(func(w io.Writer) error {
		return export.ExportValueToCSV(w, pl, args[1], config)
	})
}

func runExportSVG(cmd *cobra.Command, args []string) error {
	pl, err := payload.Load(args[0])
	if err != nil {
		return err
	}
	config := export.DefaultSVGConfig()
	config.Scale = exportScale
	config.ToolVersion = version
	heatmap, err := export.NewNeuronHeatmap(pl, args[1], config)
	if err != nil {
		return err
	}
	return withOutput(func(w io.Writer) error {
		_, err := heatmap.WriteTo(w)
		return err
	})
}

// withOutput runs write against stdout or the --output file.
func withOutput(write func(io.Writer) error) error {
	if exportOutput == "" {
		return write(os.Stdout)
	}

	proceed, err := shell.ConfirmOverwrite(shell.NewInteractivePrompter(), exportOutput, exportForce)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Println("Aborted.")
		return nil
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to create output file").
			WithContext("path", exportOutput)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to close output file").
			WithContext("path", exportOutput)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", exportOutput)
	return nil
}
