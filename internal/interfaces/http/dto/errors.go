package dto

import (
	"net/http"

	"github.com/retailpos/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound              = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists         = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict   = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeConflictingResolution = "ERR_CONFLICTING_RESOLUTION"
)

// Business rule error codes
const (
	ErrCodeInvalidState         = "ERR_INVALID_STATE"
	ErrCodeInvalidTransition    = "ERR_INVALID_TRANSITION"
	ErrCodeInsufficientStock    = "ERR_INSUFFICIENT_STOCK"
	ErrCodeOverPayment          = "ERR_OVER_PAYMENT"
	ErrCodeRefundExceedsBalance = "ERR_REFUND_EXCEEDS_BALANCE"
	ErrCodeUnmatchedCallback    = "ERR_UNMATCHED_CALLBACK"
	ErrCodeGatewayUnsupported   = "ERR_GATEWAY_UNSUPPORTED"
)

// Upstream error codes
const (
	ErrCodeGateway = "ERR_GATEWAY"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:              http.StatusNotFound,
	ErrCodeAlreadyExists:         http.StatusConflict,
	ErrCodeConcurrencyConflict:   http.StatusConflict,
	ErrCodeConflictingResolution: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:    http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:    http.StatusUnprocessableEntity,
	ErrCodeOverPayment:          http.StatusUnprocessableEntity,
	ErrCodeRefundExceedsBalance: http.StatusUnprocessableEntity,
	ErrCodeUnmatchedCallback:    http.StatusUnprocessableEntity,
	ErrCodeGatewayUnsupported:   http.StatusUnprocessableEntity,

	ErrCodeGateway: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeValidation:            ErrCodeValidation,
	shared.CodeNotFound:              ErrCodeNotFound,
	shared.CodeAlreadyExists:         ErrCodeAlreadyExists,
	shared.CodeConcurrencyConflict:   ErrCodeConcurrencyConflict,
	shared.CodeUnauthorized:          ErrCodeUnauthorized,
	shared.CodeInvalidState:          ErrCodeInvalidState,
	shared.CodeInvalidTransition:     ErrCodeInvalidTransition,
	shared.CodeInsufficientStock:     ErrCodeInsufficientStock,
	shared.CodeOverPayment:           ErrCodeOverPayment,
	shared.CodeConflictingResolution: ErrCodeConflictingResolution,
	shared.CodeRefundExceedsBalance:  ErrCodeRefundExceedsBalance,
	shared.CodeGatewayError:          ErrCodeGateway,
	shared.CodeGatewayUnsupported:    ErrCodeGatewayUnsupported,
	shared.CodeUnmatchedCallback:     ErrCodeUnmatchedCallback,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
