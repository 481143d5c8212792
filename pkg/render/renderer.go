// Package render turns payloads into HTML: template element fragments,
// neuron and index pages, and complete static sites.
package render

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
)

// DefaultHeatmapScale multiplies values before color interpolation.
const DefaultHeatmapScale = 10

var (
	colorPositive = [3]float64{69, 254, 152}
	colorZero     = [3]float64{0, 0, 0}
	colorNegative = [3]float64{255, 0, 0}
)

// InterpolateColor maps v to a color between black (0) and green (positive)
// or red (negative). |v| is clamped to 1.
func InterpolateColor(v float32) [3]uint8 {
	target := colorNegative
	if v > 0 {
		target = colorPositive
	}
	t := math.Abs(float64(v))
	if t > 1 || math.IsNaN(t) {
		t = 1
	}
	var c [3]uint8
	for i := range c {
		c[i] = uint8(math.Round(colorZero[i] + (target[i]-colorZero[i])*t))
	}
	return c
}

// HTMLRenderer renders template elements as HTML fragments.
type HTMLRenderer struct {
	// HeatmapScale multiplies values before color interpolation.
	HeatmapScale float32
}

// NewHTMLRenderer returns a renderer with the given heatmap scale; a
// non-positive scale selects DefaultHeatmapScale.
func NewHTMLRenderer(scale float32) *HTMLRenderer {
	if scale <= 0 {
		scale = DefaultHeatmapScale
	}
	return &HTMLRenderer{HeatmapScale: scale}
}

func (r *HTMLRenderer) background(v float32) string {
	c := InterpolateColor(v * r.HeatmapScale)
	return fmt.Sprintf("background-color: rgb(%d, %d, %d)", c[0], c[1], c[2])
}

// cellLabel names a heatmap cell like a board square: row letter, column number.
func cellLabel(row, col int) string {
	letter := string(rune('A' + row%26))
	if row >= 26 {
		letter = strconv.Itoa(row/26) + letter
	}
	return letter + strconv.Itoa(col+1)
}

// Heatmap renders a 2-D table of colored, labelled cells.
func (r *HTMLRenderer) Heatmap(values *data.NDArray[float32]) string {
	shape := values.Shape()
	rows, cols := shape[0], shape[1]
	var sb strings.Builder
	sb.WriteString(`<table class="heatmap">`)
	for i := 0; i < rows; i++ {
		sb.WriteString("<tr>")
		for j := 0; j < cols; j++ {
			v := values.At(i, j)
			fmt.Fprintf(&sb, `<td style="%s" title="%s">%s</td>`,
				r.background(v), formatF32(v), cellLabel(i, j))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

// Value renders a scalar as escaped text.
func (r *HTMLRenderer) Value(v data.Array) string {
	switch a := v.(type) {
	case *data.NDArray[string]:
		return template.HTMLEscapeString(a.At())
	case *data.NDArray[uint32]:
		return strconv.FormatUint(uint64(a.At()), 10)
	case *data.NDArray[float32]:
		return formatF32(a.At())
	}
	return ""
}

// FocusSequences renders step names with 1-based row and column headers,
// each cell shaded by its activation.
func (r *HTMLRenderer) FocusSequences(activations *data.NDArray[float32], stepNames *data.NDArray[string]) string {
	shape := activations.Shape()
	rows, cols := shape[0], shape[1]
	var sb strings.Builder
	sb.WriteString(`<table class="games"><tr><td class="game_step_id"></td>`)
	for j := 0; j < cols; j++ {
		fmt.Fprintf(&sb, `<td class="game_step_id">%d</td>`, j+1)
	}
	sb.WriteString("</tr>")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, `<tr><td class="game_step_id">%d</td>`, i+1)
		for j := 0; j < cols; j++ {
			v := activations.At(i, j)
			fmt.Fprintf(&sb, `<td class="game_step" style="%s" title="%s">%s</td>`,
				r.background(v), formatF32(v), template.HTMLEscapeString(stepNames.At(i, j)))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

func formatF32(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
