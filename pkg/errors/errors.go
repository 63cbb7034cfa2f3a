// Package errors defines the error taxonomy shared by the indexer, the CLI
// and the services, and maps errors onto exit codes and HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Resource errors.
	ErrInputUnreadable  = errors.New("input unreadable")
	ErrOutputUnwritable = errors.New("output unwritable")

	// Data errors.
	ErrUnindexableWord = errors.New("unindexable word")
	ErrInvalidLine     = errors.New("invalid line number")
	ErrInvalidInput    = errors.New("invalid input")

	// Lifecycle and task errors.
	ErrIndexSealed    = errors.New("index already sorted")
	ErrIndexNotSorted = errors.New("index not sorted")
	ErrTaskFailed     = errors.New("worker task failed")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

// Exit codes returned by the command-line tools.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

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

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnindexableWord),
		errors.Is(err, ErrInvalidLine):
		return http.StatusBadRequest
	case errors.Is(err, ErrInputUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps err onto the process exit status of the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	default:
		return ExitFailure
	}
}

// IsPermanent reports whether retrying the same work can never succeed.
// Configuration and data errors are permanent; resource errors are not.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnindexableWord) ||
		errors.Is(err, ErrInvalidLine)
}
