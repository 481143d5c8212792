package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	tstemplate "github.com/albertsgarde/transformerscope/pkg/template"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/style.css
var stylesheet []byte

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DefaultTitle heads every page unless overridden.
const DefaultTitle = "Transformer Scope"

// Stylesheet returns the site stylesheet.
func Stylesheet() []byte { return stylesheet }

// LinkMode selects how pages link to each other.
type LinkMode int

const (
	// ServerLinks produces absolute extensionless links (/L0/N1).
	ServerLinks LinkMode = iota
	// FileLinks produces relative links to .html files for a static site.
	FileLinks
)

func (m LinkMode) stylesheet(fromNeuron bool) string {
	switch {
	case m == ServerLinks:
		return "/static/style.css"
	case fromNeuron:
		return "../static/style.css"
	default:
		return "static/style.css"
	}
}

func (m LinkMode) index() string {
	if m == ServerLinks {
		return "/"
	}
	return "../index.html"
}

// neuronFromNeuron links between neuron pages.
func (m LinkMode) neuronFromNeuron(fromLayer, layer, neuron int) string {
	if m == ServerLinks {
		return fmt.Sprintf("/L%d/N%d", layer, neuron)
	}
	if fromLayer == layer {
		return fmt.Sprintf("N%d.html", neuron)
	}
	return fmt.Sprintf("../L%d/N%d.html", layer, neuron)
}

func (m LinkMode) neuronFromIndex(layer, neuron int) string {
	if m == ServerLinks {
		return fmt.Sprintf("/L%d/N%d", layer, neuron)
	}
	return fmt.Sprintf("L%d/N%d.html", layer, neuron)
}

// Pages renders full HTML pages for a payload.
type Pages struct {
	Renderer tstemplate.Renderer
	Mode     LinkMode
	Title    string
	// IndexTopK limits the neurons listed per layer on the index page;
	// zero lists all of them.
	IndexTopK int
}

// NewPages returns page rendering with the HTML renderer.
func NewPages(mode LinkMode, title string, heatmapScale float32) *Pages {
	if title == "" {
		title = DefaultTitle
	}
	return &Pages{Renderer: NewHTMLRenderer(heatmapScale), Mode: mode, Title: title}
}

type navLink struct {
	Label string
	Href  string
}

type neuronPage struct {
	Title          string
	StylesheetHref string
	IndexHref      string
	Layer          int
	Neuron         int
	NumNeurons     int
	Ranked         bool
	Rank           uint32
	Prev           *navLink
	Next           *navLink
	Body           template.HTML
}

// Neuron writes the page for (layer, neuron).
func (p *Pages) Neuron(w io.Writer, pl *payload.Payload, layer, neuron int) error {
	body, err := pl.RenderNeuron(layer, neuron, p.Renderer)
	if err != nil {
		return err
	}
	page := neuronPage{
		Title:          p.Title,
		StylesheetHref: p.Mode.stylesheet(true),
		IndexHref:      p.Mode.index(),
		Layer:          layer,
		Neuron:         neuron,
		NumNeurons:     pl.NumMLPNeurons(),
		Body:           template.HTML(body),
	}
	if rank, ok := pl.Value(data.RankName); ok {
		if arr, ok := data.ArrayOf[uint32](rank.Array()); ok {
			page.Ranked = true
			page.Rank = arr.At(layer, neuron)
		}
	}
	page.Prev, page.Next = p.navigation(pl, layer, neuron)

	if err := pageTemplates.ExecuteTemplate(w, "neuron.html", page); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write neuron page")
	}
	return nil
}

// navigation returns links to the neighbouring neurons, crossing into the
// previous or next layer at the edges.
func (p *Pages) navigation(pl *payload.Payload, layer, neuron int) (prev, next *navLink) {
	last := pl.NumMLPNeurons() - 1
	switch {
	case neuron > 0:
		prev = &navLink{"Previous", p.Mode.neuronFromNeuron(layer, layer, neuron-1)}
	case layer > 0:
		prev = &navLink{"Previous layer", p.Mode.neuronFromNeuron(layer, layer-1, last)}
	}
	switch {
	case neuron < last:
		next = &navLink{"Next", p.Mode.neuronFromNeuron(layer, layer, neuron+1)}
	case layer < pl.NumLayers()-1:
		next = &navLink{"Next layer", p.Mode.neuronFromNeuron(layer, layer+1, 0)}
	}
	return prev, next
}

type indexNeuron struct {
	Neuron uint32
	Href   string
}

type indexLayer struct {
	Index     int
	Neurons   []indexNeuron
	Truncated int
}

type indexPage struct {
	Title          string
	StylesheetHref string
	NumLayers      int
	NumNeurons     int
	Ranked         bool
	Layers         []indexLayer
}

// Index writes the index page listing every layer's neurons in display order.
func (p *Pages) Index(w io.Writer, pl *payload.Payload) error {
	page := indexPage{
		Title:          p.Title,
		StylesheetHref: p.Mode.stylesheet(false),
		NumLayers:      pl.NumLayers(),
		NumNeurons:     pl.NumMLPNeurons(),
		Ranked:         pl.Ranked(),
	}
	for l := 0; l < pl.NumLayers(); l++ {
		order, err := pl.LayerOrder(l)
		if err != nil {
			return err
		}
		layer := indexLayer{Index: l}
		if p.IndexTopK > 0 && len(order) > p.IndexTopK {
			layer.Truncated = len(order) - p.IndexTopK
			order = order[:p.IndexTopK]
		}
		for _, n := range order {
			layer.Neurons = append(layer.Neurons, indexNeuron{Neuron: n, Href: p.Mode.neuronFromIndex(l, int(n))})
		}
		page.Layers = append(page.Layers, layer)
	}
	if err := pageTemplates.ExecuteTemplate(w, "index.html", page); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write index page")
	}
	return nil
}
