package ir

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes failures surfaced to callers.
type ErrorKind string

const (
	// KindNotFound indicates a lookup by id failed and missing was disallowed.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindPermissionDenied indicates a rule vetoed the operation, or strict
	// mode found no applicable rule.
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"

	// KindInvalidInput indicates a malformed query, view, changeset or
	// request, or an unknown object factory.
	KindInvalidInput ErrorKind = "INVALID_INPUT"

	// KindDriverUnavailable indicates no authoritative driver is registered
	// for a read operation.
	KindDriverUnavailable ErrorKind = "DRIVER_UNAVAILABLE"

	// KindBackendFailure indicates a driver call itself failed.
	KindBackendFailure ErrorKind = "BACKEND_FAILURE"
)

// Error is the structured error returned by every objgate layer.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Type and ID identify the affected object, when known.
	Type string
	ID   string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Type != "" && e.ID != "" {
		msg = fmt.Sprintf("%s (type=%s, id=%s)", msg, e.Type, e.ID)
	} else if e.Type != "" {
		msg = fmt.Sprintf("%s (type=%s)", msg, e.Type)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code maps the error kind to an HTTP-style status code. Permission
// failures use 400, following the convention of the surrounding web layer.
func (e *Error) Code() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindDriverUnavailable:
		return http.StatusServiceUnavailable
	case KindBackendFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ErrorBody is the wire shape of a failed operation.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Body renders err as an ErrorBody. Errors that are not *Error are reported
// as backend failures.
func Body(err error) ErrorBody {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindBackendFailure, Message: err.Error()}
	}
	return ErrorBody{Error: string(e.Kind), Message: e.Message, Code: e.Code()}
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a KindNotFound error for an object.
func NotFound(typ, id string) *Error {
	return &Error{Kind: KindNotFound, Message: "object not found", Type: typ, ID: id}
}

// PermissionDenied creates a KindPermissionDenied error.
func PermissionDenied(format string, args ...any) *Error {
	return NewError(KindPermissionDenied, format, args...)
}

// InvalidInput creates a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return NewError(KindInvalidInput, format, args...)
}

// DriverUnavailable creates a KindDriverUnavailable error for an operation.
func DriverUnavailable(op string) *Error {
	return &Error{Kind: KindDriverUnavailable, Message: fmt.Sprintf("no drivers available for %s", op)}
}

// BackendFailure wraps a driver error.
func BackendFailure(driver string, err error) *Error {
	return &Error{Kind: KindBackendFailure, Message: fmt.Sprintf("driver %q failed", driver), Err: err}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsPermissionDenied returns true if the error is a permission error.
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }

// IsInvalidInput returns true if the error is an input validation error.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsDriverUnavailable returns true if no driver could serve a read.
func IsDriverUnavailable(err error) bool { return KindOf(err) == KindDriverUnavailable }

// IsBackendFailure returns true if a driver call failed.
func IsBackendFailure(err error) bool { return KindOf(err) == KindBackendFailure }
