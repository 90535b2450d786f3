package bus

import (
	"errors"
	"fmt"
)

const (
	ErrorUnsupportedContent = "unsupported_content"
	ErrorUnsupportedFormat  = "unsupported_format"
	ErrorRetrievalFailed    = "retrieval_failed"
	ErrorLoggingFailed      = "logging_failed"
	ErrorTransportFailed    = "transport_failed"
)

// Error represents a stable, categorized handling failure. Categories drive
// which localized reply the user sees; Detail stays in the logs.
type Error struct {
	Category string
	Detail   string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// NewError creates a categorized error.
func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// WrapError creates a categorized error preserving the cause chain.
func WrapError(category string, detail string, cause error) error {
	return &Error{Category: category, Detail: detail, Cause: cause}
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	return ""
}
