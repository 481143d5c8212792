package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/render"
)

// Handlers serves the pages and the JSON API for the payload held in a State.
type Handlers struct {
	state *State
	pages *render.Pages
}

// NewHandlers creates handlers rendering pages with pages. pages should use
// render.ServerLinks.
func NewHandlers(state *State, pages *render.Pages) *Handlers {
	return &Handlers{state: state, pages: pages}
}

// Register installs every route on rt. The neuron page route is
// parameterised at the top level, so it is registered last.
func (h *Handlers) Register(rt *Router, hub *Hub) {
	rt.GET("/api/payload", h.GetPayload)
	rt.POST("/api/payload/reload", h.Reload)
	rt.GET("/api/values", h.ListValues)
	rt.GET("/api/values/:name", h.GetValue)
	rt.GET("/api/values/:name/:layer/:neuron", h.GetValueSlice)
	rt.GET("/api/ranking/:layer", h.GetRanking)
	if hub != nil {
		rt.GET("/ws", hub.ServeHTTP)
	}
	rt.GET("/static/style.css", h.Stylesheet)
	rt.GET("/", h.IndexPage)
	rt.GET("/:layer/:neuron", h.NeuronPage)
}

// -----------------------------------------------------------------------------
// Pages
// -----------------------------------------------------------------------------

// IndexPage handles GET /.
func (h *Handlers) IndexPage(w http.ResponseWriter, r *http.Request) {
	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.pages.Index(&buf, pl); err != nil {
		WriteTScopeError(w, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// NeuronPage handles GET /L{layer}/N{neuron}.
func (h *Handlers) NeuronPage(w http.ResponseWriter, r *http.Request) {
	layer, okL := parseCoordinate(PathParam(r, "layer"), "L")
	neuron, okN := parseCoordinate(PathParam(r, "neuron"), "N")
	if !okL || !okN {
		WriteError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		return
	}

	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.pages.Neuron(&buf, pl, layer, neuron); err != nil {
		WriteTScopeError(w, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// Stylesheet handles GET /static/style.css.
func (h *Handlers) Stylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(render.Stylesheet())
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// parseCoordinate parses segments like "L3" or "N12".
func parseCoordinate(segment, prefix string) (int, bool) {
	digits, ok := strings.CutPrefix(segment, prefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// -----------------------------------------------------------------------------
// Payload
// -----------------------------------------------------------------------------

// ValueInfo describes a stored value without its data.
type ValueInfo struct {
	Name     string `json:"name"`
	Scope    string `json:"scope"`
	DataType string `json:"dataType"`
	Shape    []int  `json:"shape"`
}

// ValueData is a value with its elements flattened in row-major order.
// Non-finite floats are encoded as the strings "NaN", "+Inf" and "-Inf".
type ValueData struct {
	ValueInfo
	Data interface{} `json:"data"`
}

// PayloadInfo is the response of GET /api/payload.
type PayloadInfo struct {
	ID            string      `json:"id"`
	NumLayers     int         `json:"numLayers"`
	NumMLPNeurons int         `json:"numMlpNeurons"`
	Template      string      `json:"template"`
	Ranked        bool        `json:"ranked"`
	Source        string      `json:"source,omitempty"`
	Values        []ValueInfo `json:"values"`
}

func payloadInfo(pl *payload.Payload, source string) PayloadInfo {
	return PayloadInfo{
		ID:            pl.ID().String(),
		NumLayers:     pl.NumLayers(),
		NumMLPNeurons: pl.NumMLPNeurons(),
		Template:      pl.Template().Source(),
		Ranked:        pl.Ranked(),
		Source:        source,
		Values:        valueInfos(pl),
	}
}

func valueInfos(pl *payload.Payload) []ValueInfo {
	names := pl.ValueNames()
	infos := make([]ValueInfo, 0, len(names))
	for _, name := range names {
		v, _ := pl.Value(name)
		infos = append(infos, valueInfo(name, v))
	}
	return infos
}

func valueInfo(name string, v data.Value) ValueInfo {
	return ValueInfo{
		Name:     name,
		Scope:    v.Scope().String(),
		DataType: v.DataType().String(),
		Shape:    v.Shape(),
	}
}

// GetPayload handles GET /api/payload.
func (h *Handlers) GetPayload(w http.ResponseWriter, r *http.Request) {
	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, payloadInfo(pl, h.state.Source()))
}

// ReloadRequest is the optional body of POST /api/payload/reload.
type ReloadRequest struct {
	Path string `json:"path"`
}

// Reload handles POST /api/payload/reload.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if r.ContentLength > 0 {
		if err := ReadJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, tserrors.ErrInvalidArgument, "invalid JSON body: "+err.Error())
			return
		}
	}
	pl, err := h.state.Reload(req.Path)
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, payloadInfo(pl, h.state.Source()))
}

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

// ListValues handles GET /api/values.
func (h *Handlers) ListValues(w http.ResponseWriter, r *http.Request) {
	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, valueInfos(pl))
}

// GetValue handles GET /api/values/:name.
func (h *Handlers) GetValue(w http.ResponseWriter, r *http.Request) {
	_, name, v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ValueData{ValueInfo: valueInfo(name, v), Data: jsonElements(v.Array())})
}

// GetValueSlice handles GET /api/values/:name/:layer/:neuron and returns
// the part of the value that belongs to one neuron.
func (h *Handlers) GetValueSlice(w http.ResponseWriter, r *http.Request) {
	pl, name, v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	layer, neuron, ok := coordinates(w, r)
	if !ok {
		return
	}
	if err := pl.CheckCoordinates(layer, neuron); err != nil {
		WriteTScopeError(w, err)
		return
	}
	slice, err := v.SliceAt(layer, neuron)
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ValueData{
		ValueInfo: ValueInfo{
			Name:     name,
			Scope:    v.Scope().String(),
			DataType: slice.DataType().String(),
			Shape:    slice.Shape(),
		},
		Data: jsonElements(slice),
	})
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*payload.Payload, string, data.Value, bool) {
	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return nil, "", data.Value{}, false
	}
	name := PathParam(r, "name")
	v, found := pl.Value(name)
	if !found {
		WriteTScopeError(w, tserrors.ValueNotFound(name))
		return nil, "", data.Value{}, false
	}
	return pl, name, v, true
}

func coordinates(w http.ResponseWriter, r *http.Request) (layer, neuron int, ok bool) {
	layer, errL := strconv.Atoi(PathParam(r, "layer"))
	neuron, errN := strconv.Atoi(PathParam(r, "neuron"))
	if errL != nil || errN != nil {
		WriteError(w, http.StatusBadRequest, tserrors.ErrInvalidArgument, "layer and neuron must be integers")
		return 0, 0, false
	}
	return layer, neuron, true
}

// RankingData is the response of GET /api/ranking/:layer.
type RankingData struct {
	Layer   int      `json:"layer"`
	Ranked  bool     `json:"ranked"`
	Neurons []uint32 `json:"neurons"`
}

// GetRanking handles GET /api/ranking/:layer. Unranked payloads return the
// neurons in index order.
func (h *Handlers) GetRanking(w http.ResponseWriter, r *http.Request) {
	pl, err := h.state.Payload()
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	layer, err := strconv.Atoi(PathParam(r, "layer"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, tserrors.ErrInvalidArgument, "layer must be an integer")
		return
	}
	order, err := pl.LayerOrder(layer)
	if err != nil {
		WriteTScopeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, RankingData{Layer: layer, Ranked: pl.Ranked(), Neurons: order})
}

// jsonElements flattens an array into a JSON-encodable slice.
func jsonElements(a data.Array) interface{} {
	switch arr := a.(type) {
	case *data.NDArray[float32]:
		out := make([]interface{}, arr.Len())
		for i, v := range arr.Data() {
			out[i] = jsonFloat(v)
		}
		return out
	case *data.NDArray[uint32]:
		return arr.Data()
	case *data.NDArray[string]:
		return arr.Data()
	}
	return nil
}

func jsonFloat(v float32) interface{} {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 32))
}
