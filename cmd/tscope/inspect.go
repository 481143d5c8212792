package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/export"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect [snapshot]",
	Short: "Summarise a snapshot",
	Long: `Print a snapshot's dimensions, ranking, template and values.

Examples:
  tscope inspect chess.tsp                 # Human-readable text
  tscope inspect chess.tsp --format yaml   # YAML
  tscope inspect chess.tsp --format json   # JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text, yaml or json")
}

// inspectReport is the structured form of inspect output.
type inspectReport struct {
	ID            string         `yaml:"id" json:"id"`
	NumLayers     int            `yaml:"num_layers" json:"numLayers"`
	NumMLPNeurons int            `yaml:"mlp_neurons" json:"numMlpNeurons"`
	Ranked        bool           `yaml:"ranked" json:"ranked"`
	Fingerprint   string         `yaml:"fingerprint" json:"fingerprint"`
	Template      string         `yaml:"template" json:"template"`
	Values        []valueSummary `yaml:"values" json:"values"`
}

type valueSummary struct {
	Name  string `yaml:"name" json:"name"`
	Scope string `yaml:"scope" json:"scope"`
	Type  string `yaml:"type" json:"type"`
	Shape []int  `yaml:"shape,flow" json:"shape"`
}

func newInspectReport(pl *payload.Payload) inspectReport {
	report := inspectReport{
		ID:            pl.ID().String(),
		NumLayers:     pl.NumLayers(),
		NumMLPNeurons: pl.NumMLPNeurons(),
		Ranked:        pl.Ranked(),
		Fingerprint:   export.ComputeFingerprint(pl).Hash,
		Template:      pl.Template().Source(),
	}
	for _, name := range pl.ValueNames() {
		v, _ := pl.Value(name)
		report.Values = append(report.Values, valueSummary{
			Name:  name,
			Scope: v.Scope().String(),
			Type:  v.DataType().String(),
			Shape: v.Shape(),
		})
	}
	return report
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := snapshotArg(args, 0)
	pl, err := payload.Load(path)
	if err != nil {
		return err
	}
	return writeReport(os.Stdout, newInspectReport(pl), inspectFormat)
}

func writeReport(w io.Writer, report inspectReport, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "text":
		fmt.Fprintf(w, "Payload:  %s\n", report.ID)
		fmt.Fprintf(w, "Layers:   %d\n", report.NumLayers)
		fmt.Fprintf(w, "Neurons:  %d per layer\n", report.NumMLPNeurons)
		fmt.Fprintf(w, "Ranked:   %v\n", report.Ranked)
		fmt.Fprintf(w, "Content:  %s\n", report.Fingerprint)
		fmt.Fprintf(w, "Values:   %d\n", len(report.Values))
		for _, v := range report.Values {
			fmt.Fprintf(w, "  %-20s %-7s %-6s %v\n", v.Name, v.Scope, v.Type, v.Shape)
		}
		fmt.Fprintln(w, "Template:")
		fmt.Fprintln(w, report.Template)
		return nil
	}
	return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
		"unknown format %q (want text, yaml or json)", format)
}
