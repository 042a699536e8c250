package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput        = errors.New("input is empty or contains only whitespace")
	ErrFileNotFound      = errors.New("file not found")
	ErrPayloadMissing    = errors.New("named payload missing from archive")
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrInvalidRequest    = errors.New("malformed request message")
	ErrUnknownOp         = errors.New("unknown operation")
	ErrMissingField      = errors.New("missing required field")
)

// Kind categorizes errors. Every kind maps to a fixed process exit code.
type Kind string

const (
	KindFileNotFound    Kind = "FileNotFound"
	KindParseError      Kind = "ParseError"
	KindInvalidArgument Kind = "InvalidArgument"
)

// ExitCode returns the process exit code for the kind
func (k Kind) ExitCode() int {
	switch k {
	case KindFileNotFound:
		return 1
	case KindParseError:
		return 2
	case KindInvalidArgument:
		return 3
	default:
		return 2
	}
}

// AppError is an application-specific error with context
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewFileNotFoundError creates an error for a missing container or payload
func NewFileNotFoundError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindFileNotFound,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates an error for structurally malformed input
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindParseError,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgumentError creates an error for bad arguments or request messages
func NewInvalidArgumentError(message string, err error) *AppError {
	return &AppError{
		Kind:    KindInvalidArgument,
		Message: message,
		Err:     err,
	}
}

// KindOf reports the kind of err. Errors that carry no kind are treated as
// parse errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, ErrPayloadMissing):
		return KindFileNotFound
	case errors.Is(err, ErrUnsupportedSchema), errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownOp), errors.Is(err, ErrMissingField):
		return KindInvalidArgument
	}
	return KindParseError
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case KindFileNotFound:
			return fmt.Sprintf("File error: %s", appErr.Message)
		case KindParseError:
			return fmt.Sprintf("Save parsing error: %s", appErr.Message)
		case KindInvalidArgument:
			return fmt.Sprintf("Invalid argument: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide a save file with content."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrPayloadMissing) {
		return "Error: The save archive does not contain the requested payload."
	}
	if errors.Is(err, ErrUnsupportedSchema) {
		return "Error: The requested schema version is not supported."
	}

	return fmt.Sprintf("Error: %v", err)
}
