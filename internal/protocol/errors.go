package protocol

import (
	"errors"
	"fmt"
)

// Error is a protocol failure detected while encoding, decoding or applying
// changes.
//
// Errors fall into four kinds:
//   - Format: the message itself is malformed; the whole batch is rejected
//   - Identity: a change names an id that is taken or does not exist
//   - Schema: a tag is not known to this build
//   - Misuse: the encoder was driven incorrectly by its caller
//
// Error() returns Message alone so peers on other runtimes see identical
// text. Code, Kind and the structured fields carry the diagnostic context.
type Error struct {
	// Code identifies the specific failure.
	Code ErrorCode

	// Message is the human-readable description.
	Message string

	// Id is the node the failure concerns, when there is one.
	Id Id

	// Tag is the unknown tag of a schema error. Its meaning (widget,
	// property, children, modifier or event tag) follows from Message.
	Tag int32

	// Change is the change being processed, when there is one.
	Change Change
}

// ErrorCode categorizes protocol errors.
type ErrorCode string

const (
	// ErrCodeFormat indicates a malformed change or batch.
	ErrCodeFormat ErrorCode = "FORMAT"

	// ErrCodeIndexOutOfRange indicates a children index outside its slot.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeDuplicateId indicates a Create for an id that is already live.
	ErrCodeDuplicateId ErrorCode = "DUPLICATE_ID"

	// ErrCodeUnknownId indicates a change for an id that is not live.
	ErrCodeUnknownId ErrorCode = "UNKNOWN_ID"

	// ErrCodeUnknownTag indicates a tag this build does not know.
	ErrCodeUnknownTag ErrorCode = "UNKNOWN_TAG"

	// ErrCodeDuplicateWidget indicates a second registration of a guest widget.
	ErrCodeDuplicateWidget ErrorCode = "DUPLICATE_WIDGET"

	// ErrCodeRegistryMiss indicates a lookup of an unregistered guest widget.
	ErrCodeRegistryMiss ErrorCode = "REGISTRY_MISS"

	// ErrCodeInvalidVersion indicates an unparseable version string.
	ErrCodeInvalidVersion ErrorCode = "INVALID_VERSION"

	// ErrCodeSnapshotMutation indicates a snapshot holding a move or remove.
	ErrCodeSnapshotMutation ErrorCode = "SNAPSHOT_CONTAINS_MUTATION"
)

// ErrorKind groups codes by how callers must react.
type ErrorKind int

const (
	KindFormat ErrorKind = iota
	KindIdentity
	KindSchema
	KindMisuse
)

func (k ErrorKind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindIdentity:
		return "identity"
	case KindSchema:
		return "schema"
	case KindMisuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Kind returns the kind of the error's code.
func (e *Error) Kind() ErrorKind {
	switch e.Code {
	case ErrCodeDuplicateId, ErrCodeUnknownId:
		return KindIdentity
	case ErrCodeUnknownTag:
		return KindSchema
	case ErrCodeDuplicateWidget, ErrCodeRegistryMiss:
		return KindMisuse
	default:
		return KindFormat
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

func isKind(err error, kind ErrorKind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind() == kind
	}
	return false
}

// IsFormatError reports whether err is a protocol-format error.
func IsFormatError(err error) bool { return isKind(err, KindFormat) }

// IsIdentityError reports whether err is a duplicate or unknown id error.
func IsIdentityError(err error) bool { return isKind(err, KindIdentity) }

// IsSchemaError reports whether err is an unknown tag error.
func IsSchemaError(err error) bool { return isKind(err, KindSchema) }

// IsMisuseError reports whether err is an encoder programming error.
func IsMisuseError(err error) bool { return isKind(err, KindMisuse) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// NewFormatError creates a format error.
func NewFormatError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeFormat, Message: fmt.Sprintf(format, args...)}
}

// NewIndexError creates an error for an out of range children index.
func NewIndexError(c ChildrenChange, size int) *Error {
	return &Error{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("%s out of range for children of size %d", c, size),
		Id:      c.ChangeId(),
		Change:  c,
	}
}

// NewDuplicateIdError creates the error for a Create of a live id.
func NewDuplicateIdError(c Change) *Error {
	return &Error{
		Code:    ErrCodeDuplicateId,
		Message: fmt.Sprintf("Insert attempted to replace existing widget with ID %d", c.ChangeId()),
		Id:      c.ChangeId(),
		Change:  c,
	}
}

// NewUnknownIdError creates the error for a change naming a dead id.
func NewUnknownIdError(id Id, c Change) *Error {
	return &Error{
		Code:    ErrCodeUnknownId,
		Message: fmt.Sprintf("Unknown widget ID %d", id),
		Id:      id,
		Change:  c,
	}
}

// NewUnknownTagError creates a schema mismatch error for tag.
func NewUnknownTagError(tag int32, format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnknownTag, Message: fmt.Sprintf(format, args...), Tag: tag}
}

// NewDuplicateWidgetError creates the error for a double registration.
func NewDuplicateWidgetError(id Id) *Error {
	return &Error{
		Code:    ErrCodeDuplicateWidget,
		Message: fmt.Sprintf("Attempted to add widget with ID %d but one already exists", id),
		Id:      id,
	}
}

// NewRegistryMissError creates the error for a lookup of an unknown widget.
func NewRegistryMissError(id Id) *Error {
	return &Error{
		Code:    ErrCodeRegistryMiss,
		Message: fmt.Sprintf("Unknown widget ID %d", id),
		Id:      id,
	}
}
