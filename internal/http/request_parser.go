// Package http exposes the ledger services as a JSON API.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feeledger/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes the request body into dst. Unknown fields, trailing
// data and oversized bodies are rejected as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			maxErr    *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return core.NewValidationError(errEmptyBody, core.FieldError{Field: "body", Error: errEmptyBody.Error()})
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return core.Invalid("body", "request body is not valid JSON")
		case errors.As(err, &typeErr):
			return core.Invalid(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		case errors.As(err, &maxErr):
			return core.Invalid("body", "request body is too large")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return core.Invalid(field, fmt.Sprintf("unknown field %s", field))
		default:
			return core.NewValidationError(err)
		}
	}
	if dec.More() {
		return core.Invalid("body", "request body must contain a single JSON object")
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for routes whose body may be omitted.
// An empty body leaves dst untouched, whether or not Content-Length was sent.
func DecodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeJSON(w, r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

// ParseYear reads the year query parameter, defaulting to the year of now.
func ParseYear(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalid("year", "year must be a number")
	}
	return y, nil
}

// ParseDateParam reads an optional YYYY-MM-DD query parameter.
func ParseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, key+" must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// ParseBoolParam reads an optional boolean query parameter.
func ParseBoolParam(query url.Values, key string, def bool) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.Invalid(key, key+" must be true or false")
	}
	return b, nil
}
