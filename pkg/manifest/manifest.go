// Package manifest builds payloads from a YAML description of the network
// dimensions, the neuron template and the values to store.
//
//	layers: 2
//	mlp_neurons: 3
//	template: "<h2>$value(label)</h2>$heatmap(act)"
//	rank_by: metric
//	values:
//	  - name: metric
//	    scope: neuron
//	    data: [[0.5, 0.1, 0.9], [0.3, 0.7, 0.2]]
//	  - name: act
//	    scope: neuron
//	    safetensors: activations.safetensors
//	    tensor: mlp_act
//	  - name: label
//	    scope: global
//	    type: string
//	    data: "chess"
//
// Each value takes its data from exactly one source: inline nested lists,
// a JSON or YAML file of nested lists, or a safetensors tensor. Relative
// paths are resolved against the manifest's directory.
package manifest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/safetensors"
)

// Manifest describes a payload to build.
type Manifest struct {
	Layers       int         `yaml:"layers"`
	MLPNeurons   int         `yaml:"mlp_neurons"`
	Template     string      `yaml:"template,omitempty"`
	TemplateFile string      `yaml:"template_file,omitempty"`
	RankBy       string      `yaml:"rank_by,omitempty"`
	Values       []ValueSpec `yaml:"values"`

	dir string
}

// ValueSpec describes one stored value.
type ValueSpec struct {
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
	// Type is string, u32 or f32. Inline and file data default to f32;
	// safetensors values take the tensor's dtype.
	Type string `yaml:"type,omitempty"`
	// Shape reshapes the data. Without it the shape is inferred from the
	// nesting of the lists or taken from the tensor.
	Shape []int `yaml:"shape,omitempty"`

	Data        yaml.Node `yaml:"data,omitempty"`
	File        string    `yaml:"file,omitempty"`
	Safetensors string    `yaml:"safetensors,omitempty"`
	Tensor      string    `yaml:"tensor,omitempty"`
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read manifest").
			WithContext("path", path)
	}
	m, err := Parse(b, filepath.Dir(path))
	if err != nil {
		if te, ok := tserrors.AsTScopeError(err); ok {
			return nil, te.WithContext("path", path)
		}
		return nil, err
	}
	return m, nil
}

// Parse decodes a manifest whose relative paths resolve against dir.
func Parse(b []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, tserrors.AttachSuggestions(
			tserrors.WrapIO(err, tserrors.ErrManifestInvalid, "failed to parse manifest"))
	}
	m.dir = dir
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest's structure. Dimension, name and shape rules
// are left to the payload builder.
func (m *Manifest) Validate() error {
	if (m.Template == "") == (m.TemplateFile == "") {
		return invalid("exactly one of template and template_file must be set")
	}
	seen := make(map[string]bool, len(m.Values))
	for i, v := range m.Values {
		if v.Name == "" {
			return invalid("value %d has no name", i)
		}
		if seen[v.Name] {
			return tserrors.DuplicateName(v.Name)
		}
		seen[v.Name] = true

		sources := 0
		if !v.Data.IsZero() {
			sources++
		}
		if v.File != "" {
			sources++
		}
		if v.Safetensors != "" {
			sources++
			if v.Tensor == "" {
				return invalid("value %q reads a safetensors file but names no tensor", v.Name).
					WithContext("name", v.Name)
			}
		}
		if sources != 1 {
			return invalid("value %q must have exactly one of data, file and safetensors", v.Name).
				WithContext("name", v.Name)
		}
	}
	return nil
}

// Build creates the payload the manifest describes.
func (m *Manifest) Build() (*payload.Payload, error) {
	b, err := payload.NewBuilder(m.Layers, m.MLPNeurons)
	if err != nil {
		return nil, err
	}

	source := m.Template
	if m.TemplateFile != "" {
		raw, err := os.ReadFile(m.path(m.TemplateFile))
		if err != nil {
			return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read template file").
				WithContext("path", m.path(m.TemplateFile))
		}
		source = string(raw)
	}
	if err := b.SetTemplate(source); err != nil {
		return nil, err
	}

	tensors := make(map[string]*safetensors.File)
	for _, spec := range m.Values {
		scope, err := data.ParseScope(spec.Scope)
		if err != nil {
			return nil, tserrors.Wrapf(err, tserrors.ErrManifestInvalid, "value %q has invalid scope %q", spec.Name, spec.Scope)
		}
		arr, err := m.load(spec, tensors)
		if err != nil {
			return nil, err
		}
		v, err := data.NewValue(arr, scope)
		if err != nil {
			return nil, err
		}
		if err := b.AddValue(spec.Name, v); err != nil {
			return nil, err
		}
	}

	if m.RankBy != "" {
		if err := b.SetRankSource(m.RankBy); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// BuildFile loads and builds the manifest at path.
func BuildFile(path string) (*payload.Payload, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m.Build()
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

func invalid(format string, args ...interface{}) *tserrors.TScopeError {
	return tserrors.AttachSuggestions(tserrors.IOErrorf(tserrors.ErrManifestInvalid, format, args...))
}
