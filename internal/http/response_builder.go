// Package http exposes the ledger services as a JSON API.
//
// This file implements the Builder Pattern for JSON responses and maps
// ledger errors onto status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil || b.statusCode == http.StatusNoContent {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// ErrorResponse creates an unsuccessful Result envelope.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(services.Result[any]{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// StatusFor maps an operation error onto an HTTP status.
func StatusFor(err error) int {
	var (
		ve *core.ValidationError
		oe *core.OverpaymentError
		re *core.ReferencedEntityError
		ne *core.NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &re):
		return http.StatusConflict
	case errors.As(err, &oe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), core.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeResult wraps the outcome of op in a Result envelope. successCode is
// used when err is nil.
func writeResult[T any](w http.ResponseWriter, r *http.Request, op string, successCode int, data T, err error) {
	p := principalFrom(r)
	res, sysErr := services.NewResult(r.Context(), p, op, data, err)

	status := successCode
	if err != nil {
		status = StatusFor(err)
	}
	b := NewJSONResponse().Status(status).Body(res)
	if sysErr != nil && status == http.StatusServiceUnavailable {
		b.Header("Retry-After", "1")
	}
	b.Write(w)
}
