// Package fault defines the classified error type shared by the loom
// pipeline: structural validation failures, macro resolution failures,
// woven effect/acquire failures, and business errors raised by step
// bodies. Classification drives retry eligibility and macro recovery.
package fault

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for retry and
// recovery logic.
type Class string

const (
	// ClassStructural indicates a malformed step or invalid policy
	// configuration. Raised before any I/O; never recoverable by macros.
	ClassStructural Class = "structural"

	// ClassResolution indicates a macro's Resolve failed. No partial
	// capability set is ever exposed after a resolution failure.
	ClassResolution Class = "resolution"

	// ClassEffect indicates a woven port method failed during run.
	ClassEffect Class = "effect"

	// ClassAcquire indicates a lease acquire function failed.
	ClassAcquire Class = "acquire"

	// ClassCircuitOpen indicates a call was rejected without being
	// attempted because its circuit breaker is in cooldown.
	ClassCircuitOpen Class = "circuit-open"

	// ClassTimeout indicates a woven call lost the race against its
	// configured timeout budget.
	ClassTimeout Class = "effect-timeout"

	// ClassAcquireTimeout indicates a lease acquire exceeded its
	// acquire budget. Distinct from ClassTimeout so callers can branch.
	ClassAcquireTimeout Class = "acquire-timeout"

	// ClassBusiness indicates an error raised by the step body itself.
	ClassBusiness Class = "business"
)

// Error is a classified error with pipeline context.
type Error struct {
	// Class is the error classification.
	Class Class `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Port is the port the error relates to, if any (http, kv, db, ...).
	Port string `json:"port,omitempty"`

	// Op is the operation being performed when the error occurred.
	Op string `json:"op,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Port != "" && e.Op != "":
		return fmt.Sprintf("[%s] %s (port=%s, op=%s)%s", e.Class, e.Message, e.Port, e.Op, e.unwrapSuffix())
	case e.Port != "":
		return fmt.Sprintf("[%s] %s (port=%s)%s", e.Class, e.Message, e.Port, e.unwrapSuffix())
	default:
		return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapSuffix())
	}
}

func (e *Error) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two faults match when
// their class and code agree.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// WithPort adds port context to an error.
func (e *Error) WithPort(port string) *Error {
	e.Port = port
	return e
}

// WithOp adds operation context to an error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// New creates a classified error.
func New(class Class, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

// Structural creates a structural/validation error.
func Structural(message string, err error) *Error {
	return New(ClassStructural, message, err)
}

// Resolution creates a macro resolution error.
func Resolution(message string, err error) *Error {
	return New(ClassResolution, message, err)
}

// Effect creates a woven effect error.
func Effect(message string, err error) *Error {
	return New(ClassEffect, message, err)
}

// Acquire creates a lease acquire error.
func Acquire(message string, err error) *Error {
	return New(ClassAcquire, message, err)
}

// CircuitOpen creates a circuit-open error.
func CircuitOpen(message string) *Error {
	return New(ClassCircuitOpen, message, nil)
}

// Timeout creates an effect-timeout error.
func Timeout(message string) *Error {
	return New(ClassTimeout, message, nil)
}

// AcquireTimeout creates an acquire-timeout error.
func AcquireTimeout(message string) *Error {
	return New(ClassAcquireTimeout, message, nil)
}

// classOf extracts the class of an error, or "" when it is not a fault.
func classOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsStructural reports whether err is a structural/validation error.
func IsStructural(err error) bool { return classOf(err) == ClassStructural }

// IsResolution reports whether err is a macro resolution error.
func IsResolution(err error) bool { return classOf(err) == ClassResolution }

// IsCircuitOpen reports whether err is a circuit-open rejection.
// Circuit-open errors are never retried: the breaker already knows the
// downstream is failing, so re-attempting inside the cooldown is waste.
func IsCircuitOpen(err error) bool { return classOf(err) == ClassCircuitOpen }

// IsTimeout reports whether err is an effect-timeout error.
func IsTimeout(err error) bool { return classOf(err) == ClassTimeout }

// IsAcquireTimeout reports whether err is an acquire-timeout error.
func IsAcquireTimeout(err error) bool { return classOf(err) == ClassAcquireTimeout }

// IsRetryable reports whether the retry wrapper may re-attempt after
// err. Everything except circuit-open rejections and structural errors
// is eligible; the outer timeout still bounds the whole loop.
func IsRetryable(err error) bool {
	switch classOf(err) {
	case ClassCircuitOpen, ClassStructural:
		return false
	default:
		return true
	}
}

// Common error codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnknownCap      = "UNKNOWN_CAPABILITY"
	CodeTimeout         = "TIMEOUT"
	CodeAcquireTimeout  = "ACQUIRE_TIMEOUT"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
	CodeResolveFailed   = "RESOLVE_FAILED"
	CodePoolExhausted   = "POOL_EXHAUSTED"
	CodeLeaseScope      = "LEASE_SCOPE"
	CodeInternal        = "INTERNAL_ERROR"
)
