package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
)

// TextRenderer renders template elements as plain terminal text. Template
// markup outside the directives is passed through unchanged.
type TextRenderer struct{}

// Heatmap prints the table one row per line with aligned columns.
func (TextRenderer) Heatmap(values *data.NDArray[float32]) string {
	shape := values.Shape()
	cells := make([][]string, shape[0])
	for i := range cells {
		cells[i] = make([]string, shape[1])
		for j := range cells[i] {
			cells[i][j] = formatF32(values.At(i, j))
		}
	}
	return "\n" + alignRows(cells)
}

// Value prints the scalar.
func (TextRenderer) Value(v data.Array) string {
	switch a := v.(type) {
	case *data.NDArray[string]:
		return a.At()
	case *data.NDArray[uint32]:
		return strconv.FormatUint(uint64(a.At()), 10)
	case *data.NDArray[float32]:
		return formatF32(a.At())
	}
	return ""
}

// FocusSequences prints each step name followed by its activation.
func (TextRenderer) FocusSequences(activations *data.NDArray[float32], stepNames *data.NDArray[string]) string {
	shape := activations.Shape()
	cells := make([][]string, shape[0])
	for i := range cells {
		cells[i] = make([]string, shape[1])
		for j := range cells[i] {
			cells[i][j] = fmt.Sprintf("%s(%s)", stepNames.At(i, j), formatF32(activations.At(i, j)))
		}
	}
	return "\n" + alignRows(cells)
}

func alignRows(cells [][]string) string {
	var widths []int
	for _, row := range cells {
		for j, c := range row {
			if j >= len(widths) {
				widths = append(widths, 0)
			}
			widths[j] = max(widths[j], len(c))
		}
	}
	var sb strings.Builder
	for _, row := range cells {
		for j, c := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%*s", widths[j], c)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatF32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 4, 32)
}
