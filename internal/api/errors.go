package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes API failures.
type ErrorCode string

const (
	// ErrCodeNotAuthenticated indicates no credential was available, or the
	// server refused the one presented.
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"

	// ErrCodeNetworkFailure indicates the transport failed before a response
	// was received (DNS, connection refused, timeout, cancellation).
	ErrCodeNetworkFailure ErrorCode = "NETWORK_FAILURE"

	// ErrCodeServerRejected indicates the server answered but refused the
	// operation.
	ErrCodeServerRejected ErrorCode = "SERVER_REJECTED"
)

// Error is returned by every Client method.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failed operation, e.g. "add to cart".
	Op string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Message is the server's reason when it sent one.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status=%d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the message best suited for showing to a user.
func (e *Error) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
}

// CodeOf returns the code of an *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsNotAuthenticated reports whether err is a NOT_AUTHENTICATED failure.
func IsNotAuthenticated(err error) bool {
	return CodeOf(err) == ErrCodeNotAuthenticated
}

// IsNetworkFailure reports whether err is a NETWORK_FAILURE.
func IsNetworkFailure(err error) bool {
	return CodeOf(err) == ErrCodeNetworkFailure
}

// IsServerRejected reports whether err is a SERVER_REJECTED failure.
func IsServerRejected(err error) bool {
	return CodeOf(err) == ErrCodeServerRejected
}

func notAuthenticated(op string, cause error) *Error {
	return &Error{Code: ErrCodeNotAuthenticated, Op: op, Message: "sign in required", Err: cause}
}

func networkFailure(op string, cause error) *Error {
	return &Error{Code: ErrCodeNetworkFailure, Op: op, Err: cause}
}

func serverRejected(op string, status int, message string) *Error {
	return &Error{Code: ErrCodeServerRejected, Op: op, Status: status, Message: message}
}
