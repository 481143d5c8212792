package errors

import (
	"fmt"
	"strconv"
)

// -----------------------------------------------------------------------------
// Domain Constructors
// -----------------------------------------------------------------------------
// These create TScopeErrors with context and registry suggestions attached.

// DuplicateName reports that name is already present or reserved.
func DuplicateName(name string) *TScopeError {
	return AttachSuggestions(DataErrorf(ErrDuplicateName, "value %q already exists", name).
		WithContext("name", name))
}

// ShapeMismatch reports a shape that does not match what is required.
func ShapeMismatch(name string, expected, found []int, reason string) *TScopeError {
	return AttachSuggestions(DataErrorf(ErrShapeMismatch, "value %q: %s", name, reason).
		WithContext("name", name).
		WithContext("expected", fmt.Sprint(expected)).
		WithContext("found", fmt.Sprint(found)))
}

// TypeMismatch reports an element type that does not match what is required.
func TypeMismatch(name, expected, found string) *TScopeError {
	return AttachSuggestions(DataErrorf(ErrTypeMismatch, "value %q must be %s, found %s", name, expected, found).
		WithContext("name", name).
		WithContext("expected", expected).
		WithContext("found", found))
}

// ValueNotFound reports a lookup of a name that is not in the store.
func ValueNotFound(name string) *TScopeError {
	return AttachSuggestions(DataErrorf(ErrNotFound, "value %q not found", name).
		WithContext("name", name))
}

// BuilderConsumed reports use of a builder after Build.
func BuilderConsumed(op string) *TScopeError {
	return AttachSuggestions(DataErrorf(ErrBuilderConsumed, "%s called on a builder that was already built", op))
}

// ParseError reports malformed template source at byte offset pos.
func ParseError(pos int, directive, reason string) *TScopeError {
	return AttachSuggestions(TemplateErrorf(ErrParseError, "%s", reason).
		WithContext("offset", strconv.Itoa(pos)).
		WithContext("directive", directive))
}

// TemplateNotSet reports a Build without a template.
func TemplateNotSet() *TScopeError {
	return AttachSuggestions(TemplateErrorf(ErrTemplateNotSet, "no neuron template was set"))
}

// CoordinateOutOfRange reports a layer or neuron index outside the payload.
func CoordinateOutOfRange(axis string, index, limit int) *TScopeError {
	return ValidationErrorf(ErrCoordinateOutOfRange, "%s index %d out of range [0, %d)", axis, index, limit).
		WithContext(axis, strconv.Itoa(index))
}

// SnapshotCorrupt reports a snapshot that cannot be decoded.
func SnapshotCorrupt(reason string) *TScopeError {
	return AttachSuggestions(IOErrorf(ErrSnapshotCorrupt, "snapshot is corrupt: %s", reason))
}

// ConfigNotFound reports a missing configuration file.
func ConfigNotFound(path string) *TScopeError {
	return AttachSuggestions(ConfigErrorf(ErrConfigNotFound, "configuration file not found").
		WithContext("path", path))
}

// InternalPanic converts a recovered panic into an error.
func InternalPanic(recovered interface{}) *TScopeError {
	return InternalErrorf(ErrInternalPanic, "unexpected panic: %v", recovered)
}
