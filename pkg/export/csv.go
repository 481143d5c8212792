// Package export writes payload values in formats other tools read:
// long-format CSV, SVG heatmaps of per-neuron metrics and content
// fingerprints.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard uses RFC 4180 compliant CSV (comma-separated, quoted strings).
	DialectStandard CSVDialect = "standard"

	// DialectTSV uses tab-separated values instead of comma.
	DialectTSV CSVDialect = "tsv"
)

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	// Dialect specifies the CSV format variant.
	// Default: DialectStandard
	Dialect CSVDialect

	// IncludeHeader writes column headers as the first row.
	// Default: true
	IncludeHeader bool

	// Precision is the number of decimals for f32 elements; -1 prints the
	// shortest form that round-trips.
	// Default: -1
	Precision int

	// NAString represents NaN elements.
	// Default: "NA" (read as missing by R and pandas)
	NAString string
}

// DefaultCSVConfig returns a CSVConfig with sensible defaults.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:       DialectStandard,
		IncludeHeader: true,
		Precision:     -1,
		NAString:      "NA",
	}
}

// CSVWriter writes values in long format: one row per element, with the
// element's index columns followed by its value. Neuron-scoped values lead
// with layer and neuron columns, layer-scoped values with a layer column,
// and the remaining axes are named i0, i1, ...
type CSVWriter struct {
	config      *CSVConfig
	writer      *csv.Writer
	rowsWritten int
}

// NewCSVWriter creates a new CSVWriter that writes to the given io.Writer.
// If config is nil, DefaultCSVConfig() is used.
func NewCSVWriter(w io.Writer, config *CSVConfig) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}

	csvWriter := csv.NewWriter(w)
	if config.Dialect == DialectTSV {
		csvWriter.Comma = '\t'
	}

	return &CSVWriter{config: config, writer: csvWriter}
}

// Headers returns the column names for v.
func Headers(v data.Value) []string {
	var headers []string
	switch v.Scope() {
	case data.Neuron:
		headers = append(headers, "layer", "neuron")
	case data.Layer:
		headers = append(headers, "layer")
	}
	for i := range v.InnerShape() {
		headers = append(headers, fmt.Sprintf("i%d", i))
	}
	return append(headers, "value")
}

// WriteValue writes every element of v.
func (cw *CSVWriter) WriteValue(v data.Value) error {
	if cw.config.IncludeHeader {
		if err := cw.writer.Write(Headers(v)); err != nil {
			return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write CSV header")
		}
	}

	arr := v.Array()
	shape := arr.Shape()
	index := make([]int, len(shape))
	row := make([]string, len(shape)+1)
	for i := 0; i < arr.Len(); i++ {
		for axis, idx := range index {
			row[axis] = strconv.Itoa(idx)
		}
		row[len(shape)] = cw.formatElement(arr, i)
		if err := cw.writer.Write(row); err != nil {
			return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write CSV row")
		}
		cw.rowsWritten++
		advance(index, shape)
	}
	return nil
}

// advance steps a row-major multi-index to the next element.
func advance(index, shape []int) {
	for axis := len(index) - 1; axis >= 0; axis-- {
		index[axis]++
		if index[axis] < shape[axis] {
			return
		}
		index[axis] = 0
	}
}

func (cw *CSVWriter) formatElement(a data.Array, i int) string {
	switch arr := a.(type) {
	case *data.NDArray[float32]:
		f := float64(arr.Data()[i])
		switch {
		case math.IsNaN(f):
			return cw.config.NAString
		case math.IsInf(f, 1):
			return "Inf"
		case math.IsInf(f, -1):
			return "-Inf"
		}
		return strconv.FormatFloat(f, 'f', cw.config.Precision, 32)
	case *data.NDArray[uint32]:
		return strconv.FormatUint(uint64(arr.Data()[i]), 10)
	case *data.NDArray[string]:
		return arr.Data()[i]
	}
	return cw.config.NAString
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to flush CSV writer")
	}
	return nil
}

// RowsWritten returns the number of data rows written (excluding header).
func (cw *CSVWriter) RowsWritten() int {
	return cw.rowsWritten
}

// ExportValueToCSV writes the named value of pl as CSV.
// If config is nil, DefaultCSVConfig() is used.
func ExportValueToCSV(w io.Writer, pl *payload.Payload, name string, config *CSVConfig) error {
	v, ok := pl.Value(name)
	if !ok {
		return tserrors.ValueNotFound(name)
	}
	writer := NewCSVWriter(w, config)
	if err := writer.WriteValue(v); err != nil {
		return err
	}
	return writer.Flush()
}
