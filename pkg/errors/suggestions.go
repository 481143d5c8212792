// Package errors provides a suggestions registry for error remediation.
// Maps error codes to context-aware suggestions that help users fix issues.
package errors

import "sort"

// Suggestion is a remediation hint with optional conditions.
type Suggestion struct {
	// Text is the suggestion message displayed to the user.
	Text string

	// Conditions are key-value pairs that must all match the error context.
	// Empty conditions match any context.
	Conditions map[string]string

	// Priority orders suggestions; higher first.
	Priority int
}

// Matches returns true if this suggestion's conditions match the given context.
func (s *Suggestion) Matches(ctx map[string]string) bool {
	for key, value := range s.Conditions {
		if ctx[key] != value {
			return false
		}
	}
	return true
}

// Registry maps error codes to their remediation suggestions.
type Registry struct {
	suggestions map[string][]Suggestion
}

// NewRegistry creates a new suggestion registry.
func NewRegistry() *Registry {
	return &Registry{
		suggestions: make(map[string][]Suggestion),
	}
}

// Register adds a suggestion for an error code.
func (r *Registry) Register(code, text string) *Registry {
	r.suggestions[code] = append(r.suggestions[code], Suggestion{Text: text})
	return r
}

// RegisterWithCondition adds a suggestion that only applies when the error
// context matches conditions.
func (r *Registry) RegisterWithCondition(code, text string, conditions map[string]string) *Registry {
	r.suggestions[code] = append(r.suggestions[code], Suggestion{
		Text:       text,
		Conditions: conditions,
	})
	return r
}

// RegisterWithPriority adds a suggestion with explicit priority.
func (r *Registry) RegisterWithPriority(code, text string, priority int) *Registry {
	r.suggestions[code] = append(r.suggestions[code], Suggestion{
		Text:     text,
		Priority: priority,
	})
	return r
}

// Get returns the suggestions for code matching ctx, highest priority first.
func (r *Registry) Get(code string, ctx map[string]string) []string {
	var matching []Suggestion
	for _, s := range r.suggestions[code] {
		if s.Matches(ctx) {
			matching = append(matching, s)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority > matching[j].Priority
	})

	result := make([]string, len(matching))
	for i, s := range matching {
		result[i] = s.Text
	}
	return result
}

// HasSuggestions returns true if any suggestions exist for the error code.
func (r *Registry) HasSuggestions(code string) bool {
	return len(r.suggestions[code]) > 0
}

// -----------------------------------------------------------------------------
// Global Default Registry
// -----------------------------------------------------------------------------

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global default registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// GetSuggestions returns suggestions for an error code using the default registry.
func GetSuggestions(code string) []string {
	return defaultRegistry.Get(code, nil)
}

func init() {
	defaultRegistry.
		Register(ErrConfigNotFound, "Run 'tscope init' to create a default configuration").
		Register(ErrConfigParseFailed, "Check the YAML syntax of the configuration file").
		Register(ErrConfigInvalid, "Compare the file against the output of 'tscope init'")

	defaultRegistry.
		Register(ErrDuplicateName, "Value names must be unique; 'rank' and 'ranked_neurons' are reserved").
		RegisterWithCondition(ErrDuplicateName, "Rename the value; 'rank' and 'ranked_neurons' are generated by the ranking step",
			map[string]string{"name": "rank"}).
		Register(ErrShapeMismatch, "Layer-scoped values lead with the layer axis; neuron-scoped values lead with (layer, neuron)").
		Register(ErrTypeMismatch, "The rank source and heatmap values must be f32 arrays").
		Register(ErrNotFound, "Add the value before referring to it").
		Register(ErrBuilderConsumed, "Create a new builder for each payload")

	defaultRegistry.
		Register(ErrParseError, "Directives have the form $name(arg, ...) with a closing parenthesis").
		Register(ErrParseError, "Known directives: heatmap(v), value(v), focus_sequences(activations, step_names)").
		Register(ErrMissingValue, "Every name used in the template must be added to the builder").
		Register(ErrTemplateNotSet, "Set the neuron template before building")

	defaultRegistry.
		Register(ErrSnapshotCorrupt, "Rebuild the snapshot with 'tscope build'").
		Register(ErrSnapshotVersion, "Rebuild the snapshot with this version of tscope").
		Register(ErrManifestInvalid, "Each manifest value needs a name, a scope and one data source").
		Register(ErrTensorFormat, "Supported safetensors dtypes are F32, F16, BF16 and U32")

	defaultRegistry.
		RegisterWithPriority(ErrServerStartFailed, "Check whether another process is using the port", 10).
		Register(ErrServerStartFailed, "Choose a different port with server.port in the configuration").
		Register(ErrPayloadUnavailable, "Start the server with a snapshot path or POST /api/payload/reload")
}

// AttachSuggestions adds suggestions from the registry to a TScopeError.
// Uses the error's context for conditional suggestion matching.
func AttachSuggestions(err *TScopeError) *TScopeError {
	if err == nil {
		return nil
	}
	if suggestions := defaultRegistry.Get(err.Code, err.Context); len(suggestions) > 0 {
		err.Suggestions = append(err.Suggestions, suggestions...)
	}
	return err
}
