package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(NewDomainError(CodeOverPayment, "..."), ErrOverPayment) holds.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by every bounded context
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInvalidState          = "INVALID_STATE"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeOverPayment           = "OVER_PAYMENT"
	CodeConflictingResolution = "CONFLICTING_RESOLUTION"
	CodeRefundExceedsBalance  = "REFUND_EXCEEDS_BALANCE"
	CodeGatewayError          = "GATEWAY_ERROR"
	CodeGatewayUnsupported    = "GATEWAY_UNSUPPORTED"
	CodeUnmatchedCallback     = "UNMATCHED_CALLBACK"
)

// Common domain errors
var (
	ErrValidation            = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists         = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrConcurrencyConflict   = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrUnauthorized          = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrInvalidState          = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidTransition     = NewDomainError(CodeInvalidTransition, "State transition not allowed")
	ErrInsufficientStock     = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrOverPayment           = NewDomainError(CodeOverPayment, "Payment exceeds the outstanding balance")
	ErrConflictingResolution = NewDomainError(CodeConflictingResolution, "Payment already resolved with a different outcome")
	ErrRefundExceedsBalance  = NewDomainError(CodeRefundExceedsBalance, "Refund exceeds the unrefunded balance")
	ErrGatewayError          = NewDomainError(CodeGatewayError, "Payment gateway request failed")
	ErrGatewayUnsupported    = NewDomainError(CodeGatewayUnsupported, "Payment method is not supported")
	ErrUnmatchedCallback     = NewDomainError(CodeUnmatchedCallback, "Callback does not match any payment")
)

// NewValidationError creates a validation error with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// IsBusinessError reports whether err carries a domain error code. Anything
// else is treated as an infrastructure failure by callers.
func IsBusinessError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
