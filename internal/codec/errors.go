package codec

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by an entity fetcher when the referenced row does
// not exist. Decode turns it into a nil argument.
var ErrNotFound = errors.New("entity not found")

// ErrorCode categorizes codec errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedType indicates a value with no encoded form.
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"

	// ErrCodeUnknownEntityType indicates an entity reference whose type has
	// no registered fetcher.
	ErrCodeUnknownEntityType ErrorCode = "UNKNOWN_ENTITY_TYPE"

	// ErrCodeEnumUnresolved indicates an enum reference whose set or member
	// is not registered.
	ErrCodeEnumUnresolved ErrorCode = "ENUM_UNRESOLVED"

	// ErrCodeConversion indicates a decoded value cannot be converted to the
	// parameter type a rule function expects.
	ErrCodeConversion ErrorCode = "CONVERSION"
)

// Error is a codec failure with a category and the path of the offending
// value inside the argument tree.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsEnumUnresolved reports whether err is an unresolved enum reference.
func IsEnumUnresolved(err error) bool {
	return hasCode(err, ErrCodeEnumUnresolved)
}

// IsUnsupportedType reports whether err is an encode of an unsupported value.
func IsUnsupportedType(err error) bool {
	return hasCode(err, ErrCodeUnsupportedType)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func errorAt(code ErrorCode, path, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}
