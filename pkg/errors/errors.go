// Package errors defines the coded error type used throughout the Seal key server.
// Every failure a client can observe carries a stable code, a category that tells the
// client whether a retry may help, and the HTTP status the transport layer maps it to.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Category groups error codes by how a client should react to them.
type Category string

const (
	// CategoryAuthentication covers certificate and request signature failures
	CategoryAuthentication Category = "authentication"
	// CategoryValidation covers malformed transactions and parameters
	CategoryValidation Category = "validation"
	// CategoryAuthorization covers policy denial
	CategoryAuthorization Category = "authorization"
	// CategoryResource covers failures where a retry may succeed
	CategoryResource Category = "resource"
	// CategoryInternal covers unexpected server faults
	CategoryInternal Category = "internal"
)

// Code is a stable, client-visible error code.
type Code string

const (
	CodeInvalidSignature            Code = "InvalidSignature"
	CodeCertificateNotYetValid      Code = "CertificateNotYetValid"
	CodeCertificateExpired          Code = "CertificateExpired"
	CodeCertificateTTLTooLong       Code = "CertificateTtlTooLong"
	CodePolicyScopeMismatch         Code = "PolicyScopeMismatch"
	CodeInvalidRequestSignature     Code = "InvalidRequestSignature"
	CodeRequestTooOld               Code = "RequestTooOld"
	CodeUnsupportedTransactionShape Code = "UnsupportedTransactionShape"
	CodeMalformedIdentifier         Code = "MalformedIdentifier"
	CodeEmptyPolicySet              Code = "EmptyPolicySet"
	CodeTooManyIdentifiers          Code = "TooManyIdentifiers"
	CodeInvalidParameter            Code = "InvalidParameter"
	CodePolicyNotSatisfied          Code = "PolicyNotSatisfied"
	CodeEvaluatorUnavailable        Code = "EvaluatorUnavailable"
	CodeKeyDerivationFailed         Code = "KeyDerivationFailed"
	CodeRateLimited                 Code = "RateLimited"
	CodeReplayedRequest             Code = "ReplayedRequest"
	CodeInternal                    Code = "Internal"
)

type codeInfo struct {
	category   Category
	httpStatus int
}

var registry = map[Code]codeInfo{
	CodeInvalidSignature:            {CategoryAuthentication, http.StatusForbidden},
	CodeCertificateNotYetValid:      {CategoryAuthentication, http.StatusForbidden},
	CodeCertificateExpired:          {CategoryAuthentication, http.StatusForbidden},
	CodeCertificateTTLTooLong:       {CategoryAuthentication, http.StatusForbidden},
	CodePolicyScopeMismatch:         {CategoryAuthentication, http.StatusForbidden},
	CodeInvalidRequestSignature:     {CategoryAuthentication, http.StatusForbidden},
	CodeRequestTooOld:               {CategoryAuthentication, http.StatusForbidden},
	CodeReplayedRequest:             {CategoryAuthentication, http.StatusForbidden},
	CodeUnsupportedTransactionShape: {CategoryValidation, http.StatusBadRequest},
	CodeMalformedIdentifier:         {CategoryValidation, http.StatusBadRequest},
	CodeEmptyPolicySet:              {CategoryValidation, http.StatusBadRequest},
	CodeTooManyIdentifiers:          {CategoryValidation, http.StatusBadRequest},
	CodeInvalidParameter:            {CategoryValidation, http.StatusBadRequest},
	CodePolicyNotSatisfied:          {CategoryAuthorization, http.StatusForbidden},
	CodeEvaluatorUnavailable:        {CategoryResource, http.StatusServiceUnavailable},
	CodeKeyDerivationFailed:         {CategoryResource, http.StatusServiceUnavailable},
	CodeRateLimited:                 {CategoryResource, http.StatusTooManyRequests},
	CodeInternal:                    {CategoryInternal, http.StatusInternalServerError},
}

// ================================================================================
// SealError
// ================================================================================

// SealError is a structured error carrying a stable code and optional metadata.
// Values are immutable: WithCause and WithMetadata return copies, so the sentinel
// values below can be shared safely across goroutines.
type SealError struct {
	code     Code
	message  string
	cause    error
	metadata map[string]interface{}
}

// New creates a SealError for the given code.
func New(code Code, message string) *SealError {
	return &SealError{code: code, message: message}
}

// Newf creates a SealError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *SealError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a SealError for the given code with err as its cause.
func Wrap(err error, code Code, message string) *SealError {
	return &SealError{code: code, message: message, cause: err}
}

// Error implements the error interface.
func (e *SealError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Code returns the stable error code.
func (e *SealError) Code() Code { return e.code }

// Message returns the client-facing message without the cause.
func (e *SealError) Message() string { return e.message }

// Category returns the category of the error code.
func (e *SealError) Category() Category {
	if info, ok := registry[e.code]; ok {
		return info.category
	}
	return CategoryInternal
}

// HTTPStatus returns the HTTP status code the transport layer should use.
func (e *SealError) HTTPStatus() int {
	if info, ok := registry[e.code]; ok {
		return info.httpStatus
	}
	return http.StatusInternalServerError
}

// Unwrap returns the underlying cause.
func (e *SealError) Unwrap() error { return e.cause }

// Is reports whether target is a SealError with the same code.
func (e *SealError) Is(target error) bool {
	var t *SealError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// Metadata returns a copy of the attached metadata.
func (e *SealError) Metadata() map[string]interface{} {
	if len(e.metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

// WithCause returns a copy of e with the given cause.
func (e *SealError) WithCause(cause error) *SealError {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a copy of e with a different message.
func (e *SealError) WithMessage(message string) *SealError {
	c := e.clone()
	c.message = message
	return c
}

// WithMetadata returns a copy of e with an additional metadata entry.
func (e *SealError) WithMetadata(key string, value interface{}) *SealError {
	c := e.clone()
	c.metadata[key] = value
	return c
}

func (e *SealError) clone() *SealError {
	c := &SealError{
		code:     e.code,
		message:  e.message,
		cause:    e.cause,
		metadata: make(map[string]interface{}, len(e.metadata)+1),
	}
	for k, v := range e.metadata {
		c.metadata[k] = v
	}
	return c
}

// ================================================================================
// Sentinel Errors
// ================================================================================

var (
	ErrInvalidSignature            = New(CodeInvalidSignature, "certificate signature is invalid")
	ErrCertificateNotYetValid      = New(CodeCertificateNotYetValid, "certificate is not yet valid")
	ErrCertificateExpired          = New(CodeCertificateExpired, "certificate has expired")
	ErrCertificateTTLTooLong       = New(CodeCertificateTTLTooLong, "certificate ttl exceeds the allowed maximum")
	ErrPolicyScopeMismatch         = New(CodePolicyScopeMismatch, "certificate is not valid for the requested policy scope")
	ErrInvalidRequestSignature     = New(CodeInvalidRequestSignature, "request signature is invalid")
	ErrRequestTooOld               = New(CodeRequestTooOld, "request is older than the allowed maximum age")
	ErrReplayedRequest             = New(CodeReplayedRequest, "request has already been served")
	ErrUnsupportedTransactionShape = New(CodeUnsupportedTransactionShape, "policy transaction has an unsupported shape")
	ErrMalformedIdentifier         = New(CodeMalformedIdentifier, "identifier is malformed")
	ErrEmptyPolicySet              = New(CodeEmptyPolicySet, "policy transaction names no policy identifiers")
	ErrTooManyIdentifiers          = New(CodeTooManyIdentifiers, "too many policy identifiers in request")
	ErrInvalidParameter            = New(CodeInvalidParameter, "invalid request parameter")
	ErrPolicyNotSatisfied          = New(CodePolicyNotSatisfied, "policy is not satisfied for this identity")
	ErrEvaluatorUnavailable        = New(CodeEvaluatorUnavailable, "chain evaluator is unavailable")
	ErrKeyDerivationFailed         = New(CodeKeyDerivationFailed, "key share derivation failed")
	ErrRateLimited                 = New(CodeRateLimited, "too many requests")
	ErrInternal                    = New(CodeInternal, "internal server error")
)

// ================================================================================
// Helpers
// ================================================================================

// As returns the SealError in err's chain, if any.
func As(err error) (*SealError, bool) {
	var se *SealError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is is a passthrough to the standard library so callers need only one errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if se, ok := As(err); ok {
		return se.code
	}
	return CodeInternal
}

// CategoryOf returns the category of err, or CategoryInternal for foreign errors.
func CategoryOf(err error) Category {
	if se, ok := As(err); ok {
		return se.Category()
	}
	return CategoryInternal
}

// IsRetryable reports whether a client may expect a retry of the same request to succeed.
func IsRetryable(err error) bool {
	return CategoryOf(err) == CategoryResource
}

// ErrorResponse is the JSON body returned to clients on failure.
type ErrorResponse struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// ToErrorResponse converts any error into the client-facing body. Causes of
// internal errors are never exposed.
func ToErrorResponse(err error) *ErrorResponse {
	se, ok := As(err)
	if !ok {
		return &ErrorResponse{Error: CodeInternal, Message: ErrInternal.message}
	}
	return &ErrorResponse{Error: se.code, Message: se.message}
}

// HTTPStatusOf returns the HTTP status for err.
func HTTPStatusOf(err error) int {
	if se, ok := As(err); ok {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}
