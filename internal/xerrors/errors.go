// Package xerrors defines the structured error envelope returned by every
// engine operation.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error taxonomy from the transfer engine's wire
// contract. Each Kind names one class of failure raised by the precondition
// gate, the availability calculator, the store, or the transfer paths.
type Kind string

const (
	LotNotFound             Kind = "LotNotFound"
	InvalidBin              Kind = "InvalidBin"
	// InvalidQuantity covers qty-format boundary failures (zero or
	// negative qty, more than three fractional digits) with a kind of its
	// own, rather than overloading InsufficientQuantity, which is reserved
	// for the qty > available business-rule failure.
	InvalidQuantity         Kind = "InvalidQuantity"
	InsufficientQuantity    Kind = "InsufficientQuantity"
	InsufficientCommitted   Kind = "InsufficientCommitted"
	SelectionMismatch       Kind = "SelectionMismatch"
	InventoryFrozen         Kind = "InventoryFrozen"
	PhysicalCountInProgress Kind = "PhysicalCountInProgress"
	NotTransferrable        Kind = "NotTransferrable"
	Unauthorized            Kind = "Unauthorized"
	Contention              Kind = "Contention"
	Timeout                 Kind = "Timeout"
	SystemError             Kind = "SystemError"
	InvariantViolation      Kind = "InvariantViolation"
)

// Error is the structured envelope surfaced to callers. Context carries the
// extra fields a kind needs to render a human-readable message (requested
// vs. available quantity, the offending bin, and so on).
type Error struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an Error of the given kind with no context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that carries an underlying cause, used for
// SystemError, Contention and Timeout so the root cause survives for logs
// while the caller only ever sees Kind and Message.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// With attaches context fields and returns the same *Error for chaining.
func (e *Error) With(kv ...interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.Context[key] = kv[i+1]
	}
	return e
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
