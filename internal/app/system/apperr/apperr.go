// Package apperr defines the error kinds surfaced by the content store and
// the HTTP status each one maps to.
//
// Callers test the kind with errors.Is:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// Error kinds.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Error carries a kind plus the operation that failed. Fields is set for
// validation failures.
type Error struct {
	Kind   error
	Op     string
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + e.Fields[k]
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing page, section or translation.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation.
func Conflict(op, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid reports a single invalid field.
func Invalid(op, field, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Fields: map[string]string{field: msg}}
}

// Validation wraps an ozzo-validation result. A nil err returns nil.
func Validation(op string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			fields[k] = v.Error()
		}
		return &Error{Kind: ErrValidation, Op: op, Fields: fields}
	}
	return &Error{Kind: ErrValidation, Op: op, Msg: err.Error()}
}

// Unavailable wraps a storage-layer failure.
func Unavailable(op string, err error) error {
	return &Error{Kind: ErrStorageUnavailable, Op: op, Err: err}
}

// FromMongo maps a driver error to a kind. Errors that already carry a kind
// pass through unchanged. Caller cancellation is returned as-is.
func FromMongo(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrValidation), errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return &Error{Kind: ErrNotFound, Op: op, Err: err}
	case wafflemongo.IsDup(err):
		return &Error{Kind: ErrConflict, Op: op, Msg: "duplicate key", Err: err}
	case errors.Is(err, context.Canceled):
		return err
	default:
		return Unavailable(op, err)
	}
}

// IsRetryable reports whether a single retry may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// Status maps an error to an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FieldsOf returns the per-field messages of a validation error.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
