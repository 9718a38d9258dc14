package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnknownTemplate = "unknown_template"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeBadRequest      = "bad_request"
	CodePersistence     = "persistence"
)

// Error is the typed error surfaced across the service boundary. Status is the
// HTTP-equivalent class the handler layer should respond with.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func UnknownTemplate(documentKind string) *Error {
	return New(http.StatusBadRequest, CodeUnknownTemplate,
		fmt.Errorf("no template definition for document kind %q", documentKind))
}

func NotFound(what, id string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s %s not found", what, id))
}

func Conflict(err error) *Error {
	return New(http.StatusConflict, CodeConflict, err)
}

func BadRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

// StatusOf maps any error to its HTTP-equivalent status; unknown errors are 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine-readable code of an error, or empty for untyped errors.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
