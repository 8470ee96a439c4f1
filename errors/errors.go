// Package errors defines the error taxonomy for the escrow delivery SDK.
//
// All SDK errors are represented as EscrowError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error (ledger, anchor, wallet, observer)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (account address, result codes, etc.)
//
// Error codes are organized by layer. Use the provided constructor functions
// (NewLedgerError, NewAnchorError, etc.) to create properly typed errors with
// automatic layer assignment.
//
// Submission rejections carry the ledger's per-operation result codes in
// Context under the "result_codes" key; they are surfaced verbatim, never
// swallowed.
package errors

import "fmt"

// Code is a machine-readable error identifier.
type Code string

// Error codes - Ledger Layer
const (
	ACCOUNT_NOT_FOUND     Code = "ACCOUNT_NOT_FOUND"
	ACCOUNT_LOOKUP_FAILED Code = "ACCOUNT_LOOKUP_FAILED"
	FEE_ESTIMATE_FAILED   Code = "FEE_ESTIMATE_FAILED"
	SUBMISSION_REJECTED   Code = "SUBMISSION_REJECTED"
	FUNDING_FAILED        Code = "FUNDING_FAILED"
	NETWORK_ERROR         Code = "NETWORK_ERROR"
)

// Error codes - Anchor Layer
const (
	CONFIG_INVALID     Code = "CONFIG_INVALID"
	INVALID_AMOUNT     Code = "INVALID_AMOUNT"
	INVALID_ACCOUNT    Code = "INVALID_ACCOUNT"
	BUILD_FAILED       Code = "BUILD_FAILED"
	SIGNING_FAILED     Code = "SIGNING_FAILED"
	STORE_ERROR        Code = "STORE_ERROR"
	TRANSITION_INVALID Code = "TRANSITION_INVALID"
)

// Error codes - Wallet Layer
const (
	ESCROW_EMPTY       Code = "ESCROW_EMPTY"
	CLAIM_BUILD_FAILED Code = "CLAIM_BUILD_FAILED"
)

// Error codes - Observer Layer
const (
	POLL_FAILED     Code = "POLL_FAILED"
	WATCH_CANCELLED Code = "WATCH_CANCELLED"
)

// ResultCodesKey is the Context key under which a SUBMISSION_REJECTED error
// carries the ledger's structured result codes.
const ResultCodesKey = "result_codes"

// EscrowError is the base error type for all SDK errors.
type EscrowError struct {
	Code    Code
	Message string
	Layer   string // "ledger", "anchor", "wallet", "observer"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *EscrowError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *EscrowError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value detail to the error and returns it.
func (e *EscrowError) WithContext(key string, value any) *EscrowError {
	e.Context[key] = value
	return e
}

// NewLedgerError creates a ledger layer error.
func NewLedgerError(code Code, message string, cause error) *EscrowError {
	return &EscrowError{
		Code:    code,
		Message: message,
		Layer:   "ledger",
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewAnchorError creates an anchor layer error.
func NewAnchorError(code Code, message string, cause error) *EscrowError {
	return &EscrowError{
		Code:    code,
		Message: message,
		Layer:   "anchor",
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewWalletError creates a wallet layer error.
func NewWalletError(code Code, message string, cause error) *EscrowError {
	return &EscrowError{
		Code:    code,
		Message: message,
		Layer:   "wallet",
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewObserverError creates an observer layer error.
func NewObserverError(code Code, message string, cause error) *EscrowError {
	return &EscrowError{
		Code:    code,
		Message: message,
		Layer:   "observer",
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// Is checks if the target error is an EscrowError with the same code.
func (e *EscrowError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*EscrowError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As checks if err is an EscrowError and assigns it.
func As(err error, target **EscrowError) bool {
	if err == nil {
		return false
	}
	if v, ok := err.(*EscrowError); ok {
		*target = v
		return true
	}
	return false
}

// HasCode reports whether err (or any error it wraps) is an EscrowError with
// the given code. Branch logic such as the trustline-detection paths uses this
// to distinguish "account absent" from transport failures.
func HasCode(err error, code Code) bool {
	for err != nil {
		if v, ok := err.(*EscrowError); ok && v.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
