package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/render"
)

// SVG constants for figure generation.
const (
	// SVGVersion is the SVG specification version used.
	SVGVersion = "1.1"

	// SVGNamespace is the XML namespace for SVG.
	SVGNamespace = "http://www.w3.org/2000/svg"
)

// SVGConfig specifies options for heatmap figures.
type SVGConfig struct {
	// CellSize is the side of one neuron cell in pixels.
	// Default: 12
	CellSize int

	// Padding is the margin around the grid, holding the axis labels.
	// Default: 50
	Padding int

	// Title is displayed at the top. Default: the value name.
	Title string

	// Scale multiplies values before color interpolation. Zero scales
	// the largest finite magnitude to full color.
	Scale float32

	// FontFamily is the font for labels.
	// Default: "Arial, sans-serif"
	FontFamily string

	// NaNColor fills cells holding NaN.
	// Default: "#9ca3af"
	NaNColor string

	// AxisColor is the color of labels and the grid border.
	// Default: "#374151"
	AxisColor string

	// BackgroundColor is the figure background color.
	// Default: "#ffffff"
	BackgroundColor string

	// IncludeMetadata embeds the payload ID and tool version in a comment.
	// Default: true
	IncludeMetadata bool

	// ToolVersion is the version string to include in metadata.
	ToolVersion string
}

// DefaultSVGConfig returns an SVGConfig with sensible defaults.
func DefaultSVGConfig() *SVGConfig {
	return &SVGConfig{
		CellSize:        12,
		Padding:         50,
		FontFamily:      "Arial, sans-serif",
		NaNColor:        "#9ca3af",
		AxisColor:       "#374151",
		BackgroundColor: "#ffffff",
		IncludeMetadata: true,
	}
}

// NeuronHeatmap draws one cell per neuron, layers as rows, colored like the
// neuron pages' heatmaps. The value must be an f32 neuron-scoped scalar,
// such as a ranking metric.
type NeuronHeatmap struct {
	config  *SVGConfig
	name    string
	id      string
	metric  *data.NDArray[float32]
	layers  int
	neurons int
}

// NewNeuronHeatmap prepares a heatmap of the named value of pl.
// If config is nil, DefaultSVGConfig() is used.
func NewNeuronHeatmap(pl *payload.Payload, name string, config *SVGConfig) (*NeuronHeatmap, error) {
	if config == nil {
		config = DefaultSVGConfig()
	}
	v, ok := pl.Value(name)
	if !ok {
		return nil, tserrors.ValueNotFound(name)
	}
	metric, isF32 := data.ArrayOf[float32](v.Array())
	if !isF32 {
		return nil, tserrors.TypeMismatch(name, data.F32.String(), v.DataType().String())
	}
	if v.Scope() != data.Neuron || len(v.InnerShape()) != 0 {
		return nil, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
			"value %q must be a neuron-scoped scalar, got %s scope with shape %v", name, v.Scope(), v.Shape()).
			WithContext("name", name)
	}
	return &NeuronHeatmap{
		config:  config,
		name:    name,
		id:      pl.ID().String(),
		metric:  metric,
		layers:  pl.NumLayers(),
		neurons: pl.NumMLPNeurons(),
	}, nil
}

// scale returns the configured scale, or one that maps the largest finite
// magnitude to 1.
func (h *NeuronHeatmap) scale() float32 {
	if h.config.Scale > 0 {
		return h.config.Scale
	}
	var peak float64
	for _, v := range h.metric.Data() {
		f := math.Abs(float64(v))
		if !math.IsNaN(f) && !math.IsInf(f, 0) && f > peak {
			peak = f
		}
	}
	if peak == 0 {
		return 1
	}
	return float32(1 / peak)
}

// Build generates the complete SVG document.
func (h *NeuronHeatmap) Build() string {
	var sb strings.Builder
	cfg := h.config
	gridWidth := h.neurons * cfg.CellSize
	gridHeight := h.layers * cfg.CellSize
	width := gridWidth + 2*cfg.Padding
	height := gridHeight + 2*cfg.Padding

	fmt.Fprintf(&sb, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(&sb, "<svg xmlns=\"%s\" version=\"%s\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		SVGNamespace, SVGVersion, width, height, width, height)
	fmt.Fprintf(&sb, "  <rect width=\"100%%\" height=\"100%%\" fill=\"%s\"/>\n", cfg.BackgroundColor)
	if cfg.IncludeMetadata {
		fmt.Fprintf(&sb, "  <!-- payload %s, value %s", h.id, escapeXML(h.name))
		if cfg.ToolVersion != "" {
			fmt.Fprintf(&sb, ", tscope %s", escapeXML(cfg.ToolVersion))
		}
		sb.WriteString(" -->\n")
	}

	title := cfg.Title
	if title == "" {
		title = h.name
	}
	fmt.Fprintf(&sb, "  <text x=\"%d\" y=\"%d\" text-anchor=\"middle\" font-family=\"%s\" font-size=\"16\" fill=\"%s\">%s</text>\n",
		width/2, cfg.Padding/2, cfg.FontFamily, cfg.AxisColor, escapeXML(title))

	fmt.Fprintf(&sb, "  <g transform=\"translate(%d,%d)\">\n", cfg.Padding, cfg.Padding)
	scale := h.scale()
	for l := 0; l < h.layers; l++ {
		for n := 0; n < h.neurons; n++ {
			v := h.metric.At(l, n)
			fmt.Fprintf(&sb, "    <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"%s\"><title>L%d/N%d: %s</title></rect>\n",
				n*cfg.CellSize, l*cfg.CellSize, cfg.CellSize, cfg.CellSize, h.fill(v, scale), l, n, formatValue(v))
		}
	}
	fmt.Fprintf(&sb, "    <rect width=\"%d\" height=\"%d\" fill=\"none\" stroke=\"%s\"/>\n", gridWidth, gridHeight, cfg.AxisColor)
	h.writeTicks(&sb)
	sb.WriteString("  </g>\n")

	fmt.Fprintf(&sb, "  <text x=\"%d\" y=\"%d\" text-anchor=\"middle\" font-family=\"%s\" font-size=\"12\" fill=\"%s\">Neuron</text>\n",
		width/2, height-cfg.Padding/4, cfg.FontFamily, cfg.AxisColor)
	fmt.Fprintf(&sb, "  <text x=\"%d\" y=\"%d\" text-anchor=\"middle\" font-family=\"%s\" font-size=\"12\" fill=\"%s\" transform=\"rotate(-90 %d %d)\">Layer</text>\n",
		cfg.Padding/4, height/2, cfg.FontFamily, cfg.AxisColor, cfg.Padding/4, height/2)
	sb.WriteString("</svg>\n")
	return sb.String()
}

func (h *NeuronHeatmap) fill(v, scale float32) string {
	if math.IsNaN(float64(v)) {
		return h.config.NaNColor
	}
	c := render.InterpolateColor(v * scale)
	return fmt.Sprintf("rgb(%d,%d,%d)", c[0], c[1], c[2])
}

// writeTicks labels the layer axis on the left and the neuron axis below.
func (h *NeuronHeatmap) writeTicks(sb *strings.Builder) {
	cfg := h.config
	half := cfg.CellSize / 2
	for _, l := range calculateIntTicks(0, h.layers-1, 10) {
		fmt.Fprintf(sb, "    <text x=\"-4\" y=\"%d\" text-anchor=\"end\" dominant-baseline=\"middle\" font-family=\"%s\" font-size=\"10\" fill=\"%s\">%d</text>\n",
			l*cfg.CellSize+half, cfg.FontFamily, cfg.AxisColor, l)
	}
	for _, n := range calculateIntTicks(0, h.neurons-1, 10) {
		fmt.Fprintf(sb, "    <text x=\"%d\" y=\"%d\" text-anchor=\"middle\" font-family=\"%s\" font-size=\"10\" fill=\"%s\">%d</text>\n",
			n*cfg.CellSize+half, h.layers*cfg.CellSize+12, cfg.FontFamily, cfg.AxisColor, n)
	}
}

// WriteTo writes the SVG to an io.Writer.
func (h *NeuronHeatmap) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, h.Build())
	if err != nil {
		return int64(n), tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write SVG")
	}
	return int64(n), nil
}

func formatValue(v float32) string {
	return fmt.Sprintf("%g", v)
}

// calculateIntTicks picks at most about maxTicks round tick positions in
// [min, max], always including both ends.
func calculateIntTicks(min, max, maxTicks int) []int {
	if max <= min {
		return []int{min}
	}

	rangeSize := max - min
	step := 1
	if rangeSize > maxTicks {
		step = (rangeSize + maxTicks - 1) / maxTicks
		if step > 1 && step < 5 {
			step = 5
		} else if step >= 5 && step < 10 {
			step = 10
		} else if step >= 10 {
			magnitude := int(math.Pow(10, math.Floor(math.Log10(float64(step)))))
			step = ((step + magnitude - 1) / magnitude) * magnitude
		}
	}

	ticks := make([]int, 0)
	start := (min / step) * step
	if start < min {
		start += step
	}
	for tick := start; tick <= max; tick += step {
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 || ticks[0] > min {
		ticks = append([]int{min}, ticks...)
	}
	if ticks[len(ticks)-1] < max {
		ticks = append(ticks, max)
	}
	return ticks
}

// escapeXML escapes special characters for XML/SVG content.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
