// Package errors defines the sentinel errors shared across the engine and
// the AppError wrapper that carries an HTTP status code to the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidDocument indicates a document that cannot be indexed, for
	// example one with a missing ID.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrIndexingInProgress is returned when a query arrives before the
	// first index build has completed.
	ErrIndexingInProgress = errors.New("indexing in progress")
	// ErrUnsupportedQueryType indicates a query type outside fulltext,
	// semantic, entity, and hybrid.
	ErrUnsupportedQueryType = errors.New("unsupported query type")
	// ErrInvalidQuery indicates a structurally invalid query (empty text,
	// malformed filters).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDocumentNotFound indicates a lookup for an ID the store does not
	// hold.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInternal wraps unexpected failures.
	ErrInternal = errors.New("internal error")
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// AppError pairs a sentinel error with a human-readable message and the
// HTTP status code it should surface as.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel in an AppError.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf wraps a sentinel in an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status it should be reported as.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidDocument), errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrUnsupportedQueryType):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexingInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
