package bridge

import (
	"errors"
	"fmt"
)

// Error represents a structured pipeline error with component context. None
// of these are fatal: every call site that produces one logs it, counts it,
// and continues per the error-handling policy — nothing in the pipeline
// panics or aborts the main loop.
type Error struct {
	Op        string    // operation that failed (e.g. "parse", "distribute")
	Component string    // owning component (e.g. "Device1_SBUS_IN", "UART1 sender")
	Code      ErrorCode // high-level error category
	Msg       string    // human-readable detail
	Inner     error     // wrapped error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.Component))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("bridge: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("bridge: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support keyed on error Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is the closed set of error categories from the error-handling
// design: every kind of failure the pipeline can encounter maps to exactly
// one of these, never to a bespoke ad-hoc string.
type ErrorCode string

const (
	// ErrCodeIngressOverrun: FIFO full / ring full on an ingress buffer.
	ErrCodeIngressOverrun ErrorCode = "ingress overrun"
	// ErrCodeParserFraming: bad magic, bad CRC, bad SBUS end-byte.
	ErrCodeParserFraming ErrorCode = "parser framing error"
	// ErrCodeSenderQueueFull: drop-newest on a full sender queue.
	ErrCodeSenderQueueFull ErrorCode = "sender queue full"
	// ErrCodeTransportNotReady: availableForWrite()==0, packet left queued.
	ErrCodeTransportNotReady ErrorCode = "transport not ready"
	// ErrCodeResourceContention: shared resource not acquired in time.
	ErrCodeResourceContention ErrorCode = "shared resource contention"
	// ErrCodeConfigImpossible: no buffer/sender for a configured role.
	ErrCodeConfigImpossible ErrorCode = "configuration impossible"
	// ErrCodeInvalidInterface: a packet carries an out-of-range physical interface.
	ErrCodeInvalidInterface ErrorCode = "invalid physical interface"
)

// NewError creates a structured error with no wrapped cause.
func NewError(op, component string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Component: component, Code: code, Msg: msg}
}

// WrapError wraps an existing error with pipeline operation context,
// preserving the original's Code when it is already a structured *Error.
func WrapError(op, component string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if be, ok := inner.(*Error); ok {
		return &Error{Op: op, Component: component, Code: be.Code, Msg: be.Msg, Inner: be.Inner}
	}
	return &Error{Op: op, Component: component, Code: ErrCodeResourceContention, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured *Error with the given Code.
func IsCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}