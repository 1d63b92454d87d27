// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeInvalidAddress  Code = "INVALID_ADDRESS"
	CodeInvalidChain    Code = "INVALID_CHAIN"
	CodeInvalidAmount   Code = "INVALID_AMOUNT"
	CodeBelowMinimum    Code = "BELOW_MINIMUM"
	CodeInvalidUsername Code = "INVALID_USERNAME"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Authorization errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeUnauthorized    Code = "UNAUTHORIZED"

	// Conflict errors
	CodeUsernameTaken      Code = "USERNAME_TAKEN"
	CodeDuplicateNullifier Code = "DUPLICATE_NULLIFIER"
	CodeDuplicateParty     Code = "DUPLICATE_PARTY"

	// Ledger errors
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// External dependency errors
	CodeProcessorFailure Code = "PROCESSOR_FAILURE"
	CodeProcessorNoID    Code = "PROCESSOR_NO_TRANSACTION_ID"

	// Cryptographic verification errors
	CodeVerificationFailed Code = "VERIFICATION_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message safe to show callers
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code from a domain error, or CodeUnknown otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknown
}
