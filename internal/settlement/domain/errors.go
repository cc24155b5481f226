package domain

import (
	"errors"
	"fmt"
)

// Error codes returned to API callers. Handlers map these onto HTTP status
// codes; everything else surfaces as a 500.
const (
	CodeValidation            = "validation_error"
	CodeUnauthorized          = "unauthorized"
	CodeOrderNotFound         = "order_not_found"
	CodePaymentNotFound       = "payment_not_found"
	CodeAlreadyCaptured       = "already_captured"
	CodeAuthorizationExpired  = "authorization_expired"
	CodeRefundExceedsBalance  = "refund_exceeds_balance"
	CodeInvalidTransition     = "invalid_transition"
	CodeAuthorizationFailed   = "authorization_failed"
	CodeCaptureFailed         = "capture_failed"
	CodeChargeFailed          = "charge_failed"
	CodeRefundFailed          = "refund_failed"
	CodeGatewayOutcomeUnknown = "gateway_outcome_unknown"
	CodeSignatureInvalid      = "signature_verification_failed"
	CodeOrderNotPayable       = "order_not_payable"
)

// Error is a typed domain failure carrying a stable snake_case code
type Error struct {
	Code    string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a typed domain error
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a typed domain error with a formatted message
func NewErrorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail field and returns the error for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// AsError unwraps err into a *Error when possible
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ErrorCode returns the domain code for err, or empty for untyped errors
func ErrorCode(err error) string {
	if de, ok := AsError(err); ok {
		return de.Code
	}
	return ""
}
