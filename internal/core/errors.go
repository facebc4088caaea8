package core

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed input. It is raised before any write.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// Invalid is a shorthand for a single-field validation failure.
func Invalid(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err == nil {
			return "invalid input"
		}
		return e.Err.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

// OverpaymentError is returned when a payment exceeds the remaining balance
// of an installment.
type OverpaymentError struct {
	Requested Money
	Remaining Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the remaining installment balance; maximum allowed is %s",
		e.Requested, e.Remaining)
}

// Reference counts one kind of row still pointing at an entity.
type Reference struct {
	Kind  string
	Count int64
}

// ReferencedEntityError is returned when deleting an entity that other rows
// still reference.
type ReferencedEntityError struct {
	Entity     string
	ID         string
	References []Reference
}

func (e *ReferencedEntityError) Error() string {
	parts := make([]string, 0, len(e.References))
	for _, r := range e.References {
		if r.Count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", r.Count, r.Kind))
		}
	}
	return fmt.Sprintf("%s is referenced by %s; deactivate it instead", e.Entity, strings.Join(parts, " and "))
}

// NotFoundError is returned when a record does not exist or belongs to
// another organization.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op        string
	Err       error
	retryable bool
}

func NewStoreError(op string, err error, retryable bool) *StoreError {
	return &StoreError{Op: op, Err: err, retryable: retryable}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether the operation may succeed if attempted again,
// e.g. after a lock timeout or a version conflict.
func (e *StoreError) Retryable() bool { return e.retryable }

// IsExpected reports whether err is one of the domain failures a caller is
// meant to see verbatim.
func IsExpected(err error) bool {
	var (
		ve *ValidationError
		oe *OverpaymentError
		re *ReferencedEntityError
		ne *NotFoundError
	)
	return errors.As(err, &ve) || errors.As(err, &oe) || errors.As(err, &re) || errors.As(err, &ne)
}

// IsRetryable reports whether err carries a retryable StoreError.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable()
}
