package services

import (
	"context"
	"errors"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

// SystemErrorMessage is all a caller learns about an unexpected failure.
const SystemErrorMessage = "an unexpected error occurred"

// Result is the envelope returned to application-layer callers.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SystemError marks a failure the caller cannot act on. The cause is kept
// for logs and for retry decisions but never shown.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string { return SystemErrorMessage }
func (e *SystemError) Unwrap() error { return e.Err }

// Retryable reports whether running the operation again may succeed.
func (e *SystemError) Retryable() bool { return core.IsRetryable(e.Err) }

// NewResult turns an operation outcome into a Result. Expected domain errors
// become an unsuccessful Result and a nil error. Anything else is logged
// with the principal and returned as a *SystemError alongside a generic
// Result.
func NewResult[T any](ctx context.Context, p core.Principal, op string, data T, err error) (Result[T], error) {
	if err == nil {
		return Result[T]{Success: true, Data: data}, nil
	}
	if core.IsExpected(err) {
		return Result[T]{Error: expectedMessage(err)}, nil
	}

	errorType := log.ErrorTypeInternal
	var se *core.StoreError
	if errors.As(err, &se) {
		errorType = log.ErrorTypeDatabase
		if se.Retryable() {
			errorType = log.ErrorTypeTimeout
		}
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Ledger operation failed", err,
		log.ComponentLedger, op,
		log.NewFields().WithPrincipal(p.OrganizationID, p.UserID).WithErrorType(errorType))

	return Result[T]{Error: SystemErrorMessage}, &SystemError{Err: err}
}

// expectedMessage returns the message of the domain error inside err,
// without the operation prefixes added while it was propagated.
func expectedMessage(err error) string {
	var (
		ve *core.ValidationError
		oe *core.OverpaymentError
		re *core.ReferencedEntityError
		ne *core.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &oe):
		return oe.Error()
	case errors.As(err, &re):
		return re.Error()
	case errors.As(err, &ne):
		return ne.Error()
	}
	return err.Error()
}
