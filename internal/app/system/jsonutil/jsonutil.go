// Package jsonutil provides helper functions for JSON API responses.
//
// Use these helpers in API handlers to ensure consistent JSON responses
// with proper Content-Type headers and error formatting. Handlers hand store
// errors to WriteError, which picks the status from the apperr kind.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/stratacms/internal/app/system/apperr"
)

// MaxBodyBytes caps JSON request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// JSON writes a JSON response with the given status code.
//
// Usage:
//
//	jsonutil.JSON(w, http.StatusOK, map[string]any{
//	    "status": "success",
//	    "data": result,
//	})
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created JSON response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response (no body).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Page is the envelope for paginated listings.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
}

// List writes a paginated listing. A nil items slice is sent as [].
func List[T any](w http.ResponseWriter, items []T, total, page, limit int64) {
	if items == nil {
		items = []T{}
	}
	if page <= 0 {
		page = 1
	}
	OK(w, Page[T]{Items: items, Total: total, Page: page, Limit: limit})
}

// Error writes an error response with the given status code.
// The response body is {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 Internal Server Error response.
// Do not expose internal details to clients; log the actual error separately.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// ValidationError writes a 400 Bad Request response with field-level errors.
//
// Usage:
//
//	jsonutil.ValidationError(w, map[string]string{
//	    "slug":  "must be lowercase letters, digits and single hyphens",
//	    "title": "cannot be blank",
//	})
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// WriteError maps a store error to its status and body. Storage failures
// and unknown errors get a generic message; the caller logs the detail.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	switch status {
	case http.StatusBadRequest:
		if fields := apperr.FieldsOf(err); len(fields) > 0 {
			ValidationError(w, fields)
			return
		}
		BadRequest(w, message(err))
	case http.StatusNotFound, http.StatusConflict:
		Error(w, status, message(err))
	case http.StatusServiceUnavailable:
		Error(w, status, "storage unavailable, try again")
	default:
		InternalError(w, "internal error")
	}
}

func message(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// Decode reads and decodes JSON from the request body into v. Bodies over
// MaxBodyBytes, unknown fields and trailing data are rejected with a
// ValidationError-kind error.
//
// Usage:
//
//	var in contentstore.PageInput
//	if err := jsonutil.Decode(r, &in); err != nil {
//	    jsonutil.WriteError(w, err)
//	    return
//	}
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("Decode", "body", "request body is empty")
		}
		return &apperr.Error{Kind: apperr.ErrValidation, Op: "Decode", Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return apperr.Invalid("Decode", "body", "unexpected data after the JSON object")
	}
	return nil
}
