// Package errors provides error code constants for transformerscope.
// Error codes are organized by category for consistent handling and lookup.
package errors

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigWriteFailed indicates the config file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Data Error Codes
// -----------------------------------------------------------------------------
// Value store, builder and ranking failures.

const (
	// ErrDuplicateName indicates a value name is already taken or reserved.
	ErrDuplicateName = "DUPLICATE_NAME"

	// ErrShapeMismatch indicates an array shape is incompatible with its
	// scope, its data length, or the operation it is used in.
	ErrShapeMismatch = "SHAPE_MISMATCH"

	// ErrTypeMismatch indicates a value has the wrong element type.
	ErrTypeMismatch = "TYPE_MISMATCH"

	// ErrNotFound indicates a named value does not exist.
	ErrNotFound = "NOT_FOUND"

	// ErrBuilderConsumed indicates a builder was used after Build.
	ErrBuilderConsumed = "BUILDER_CONSUMED"
)

// -----------------------------------------------------------------------------
// Template Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrParseError indicates the template source is malformed.
	ErrParseError = "PARSE_ERROR"

	// ErrMissingValue indicates a template references a value that is absent.
	ErrMissingValue = "MISSING_VALUE"

	// ErrTemplateNotSet indicates Build was called before a template was set.
	ErrTemplateNotSet = "TEMPLATE_NOT_SET"

	// ErrTemplateAlreadySet indicates the template was set twice.
	ErrTemplateAlreadySet = "TEMPLATE_ALREADY_SET"
)

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrInvalidName indicates a value name cannot be used.
	ErrInvalidName = "INVALID_NAME"

	// ErrInvalidDimension indicates a layer or neuron count is below one.
	ErrInvalidDimension = "INVALID_DIMENSION"

	// ErrCoordinateOutOfRange indicates a layer or neuron index is out of range.
	ErrCoordinateOutOfRange = "COORDINATE_OUT_OF_RANGE"

	// ErrInvalidArgument indicates a malformed argument (scope name, dtype, ...).
	ErrInvalidArgument = "INVALID_ARGUMENT"
)

// -----------------------------------------------------------------------------
// IO Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrIOReadFailed indicates a file could not be read.
	ErrIOReadFailed = "IO_READ_FAILED"

	// ErrIOWriteFailed indicates a file could not be written.
	ErrIOWriteFailed = "IO_WRITE_FAILED"

	// ErrSnapshotCorrupt indicates a snapshot failed its checksum or structure checks.
	ErrSnapshotCorrupt = "SNAPSHOT_CORRUPT"

	// ErrSnapshotVersion indicates a snapshot was written by an unsupported version.
	ErrSnapshotVersion = "SNAPSHOT_VERSION"

	// ErrManifestInvalid indicates a producer manifest could not be used.
	ErrManifestInvalid = "MANIFEST_INVALID"

	// ErrTensorFormat indicates a tensor file is malformed or unsupported.
	ErrTensorFormat = "TENSOR_FORMAT"
)

// -----------------------------------------------------------------------------
// Network Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrServerStartFailed indicates the HTTP server could not bind or start.
	ErrServerStartFailed = "SERVER_START_FAILED"

	// ErrPayloadUnavailable indicates no payload is loaded in the server.
	ErrPayloadUnavailable = "PAYLOAD_UNAVAILABLE"
)

// -----------------------------------------------------------------------------
// Internal Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrInternalError indicates an unexpected internal failure.
	ErrInternalError = "INTERNAL_ERROR"

	// ErrInternalPanic indicates a recovered panic.
	ErrInternalPanic = "INTERNAL_PANIC"
)

// -----------------------------------------------------------------------------
// Error Code Lookup Helpers
// -----------------------------------------------------------------------------

// CodeCategory returns the category for a given error code.
// Returns CategoryInternal if the code is not recognized.
func CodeCategory(code string) Category {
	switch code {
	case ErrConfigNotFound, ErrConfigParseFailed, ErrConfigInvalid, ErrConfigWriteFailed:
		return CategoryConfig

	case ErrDuplicateName, ErrShapeMismatch, ErrTypeMismatch, ErrNotFound, ErrBuilderConsumed:
		return CategoryData

	case ErrParseError, ErrMissingValue, ErrTemplateNotSet, ErrTemplateAlreadySet:
		return CategoryTemplate

	case ErrInvalidName, ErrInvalidDimension, ErrCoordinateOutOfRange, ErrInvalidArgument:
		return CategoryValidation

	case ErrIOReadFailed, ErrIOWriteFailed, ErrSnapshotCorrupt, ErrSnapshotVersion,
		ErrManifestInvalid, ErrTensorFormat:
		return CategoryIO

	case ErrServerStartFailed, ErrPayloadUnavailable:
		return CategoryNetwork

	default:
		return CategoryInternal
	}
}
