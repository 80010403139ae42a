package errors

import (
	"errors"
	"fmt"
	"strings"
)

// GetCode extracts the code from an error, walking the cause chain.
// Returns the zero Code for plain errors.
func GetCode(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Code{}
}

// HasCode reports whether err (or any error it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code.Equals(code)
	}
	return false
}

// GetContext extracts logging context from an error
func GetContext(err error) map[string]string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Context
	}
	return nil
}

// AsError converts any error to *Error, wrapping plain errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return Wrap(CommonInternal, err, err.Error())
}

// FormatError renders an error with code, context and cause for logs
func FormatError(err error) string {
	var coded *Error
	if !errors.As(err, &coded) {
		return err.Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Code: %s", coded.Code))
	parts = append(parts, fmt.Sprintf("Message: %s", coded.Message))

	if len(coded.Context) > 0 {
		parts = append(parts, "Context:")
		for k, v := range coded.Context {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, v))
		}
	}

	if coded.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", coded.Cause))
	}

	return strings.Join(parts, "\n")
}
