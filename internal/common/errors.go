// errors.go - Typed extraction failures exposed to the transport layer

package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an extraction failure
type ErrorKind string

const (
	ErrUnsupportedMedia  ErrorKind = "unsupported_media"
	ErrUpstreamService   ErrorKind = "upstream_error"
	ErrUpstreamTimeout   ErrorKind = "upstream_timeout"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrSchema            ErrorKind = "schema_error"
)

// ExtractionError is the single failure type the HTTP layer maps to a response.
// RawText keeps the unparseable model output for diagnostics, never for clients.
type ExtractionError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	RawText    string
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewUnsupportedMediaError reports a rejected upload. statusCode is 413 for
// oversized payloads and 415 for disallowed media types.
func NewUnsupportedMediaError(statusCode int, message string) *ExtractionError {
	return &ExtractionError{
		Kind:       ErrUnsupportedMedia,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewUpstreamServiceError reports a failed remote model call
func NewUpstreamServiceError(message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:       ErrUpstreamService,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// NewUpstreamTimeoutError reports a remote model call that exceeded its deadline
func NewUpstreamTimeoutError(message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:       ErrUpstreamTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewMalformedResponseError reports model output that survived no repair rule
func NewMalformedResponseError(message, rawText string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:       ErrMalformedResponse,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		RawText:    rawText,
		Err:        err,
	}
}

// NewSchemaError reports parseable output that yielded no valid line items
func NewSchemaError(message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:       ErrSchema,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// KindOf returns the classification of err, or "" when err is not an ExtractionError
func KindOf(err error) ErrorKind {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	return ""
}
