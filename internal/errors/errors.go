package errors

import (
	stderrors "errors"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindConflict     Kind = "CONFLICT"
	KindUpstream     Kind = "UPSTREAM_FAILURE"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Error is a classified application error. Two errors match under errors.Is
// when their codes are equal, so sentinels can be wrapped with context.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.Err = cause
	return &clone
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// ErrValidation matches every validation failure.
	ErrValidation = newError(KindValidation, "VALIDATION_ERROR", "validation failed")

	// ErrCredentialInvalid is returned when a provider credential is expired,
	// malformed, or fails signature/audience checks.
	ErrCredentialInvalid = newError(KindUnauthorized, "CREDENTIAL_INVALID", "invalid identity credential")
	// ErrCredentialExchangeFailed is returned when the identity provider is
	// unreachable or rejected the authorization code.
	ErrCredentialExchangeFailed = newError(KindUpstream, "CREDENTIAL_EXCHANGE_FAILED", "identity provider exchange failed")

	// ErrSessionInvalid is returned for a missing, malformed or badly signed session.
	ErrSessionInvalid = newError(KindUnauthorized, "SESSION_INVALID", "invalid session")
	// ErrSessionExpired is returned when the session credential is past its expiry.
	ErrSessionExpired = newError(KindUnauthorized, "SESSION_EXPIRED", "session expired")
	// ErrSessionRevoked is returned when the credential was explicitly revoked.
	ErrSessionRevoked = newError(KindUnauthorized, "SESSION_REVOKED", "session revoked")
	// ErrUnauthorized is the generic authentication failure.
	ErrUnauthorized = newError(KindUnauthorized, "UNAUTHORIZED", "unauthorized")
	// ErrForbidden is returned when a valid caller lacks privilege.
	ErrForbidden = newError(KindForbidden, "FORBIDDEN", "forbidden")

	// ErrIdentityNotFound is returned when no user matches.
	ErrIdentityNotFound = newError(KindNotFound, "IDENTITY_NOT_FOUND", "user not found")
	// ErrProductNotFound is returned when an order references a missing product.
	ErrProductNotFound = newError(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	// ErrOrderNotFound is returned when no order matches.
	ErrOrderNotFound = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")

	// ErrDuplicateOrderNumber is returned by storage when the order number
	// unique constraint rejects an insert.
	ErrDuplicateOrderNumber = newError(KindConflict, "DUPLICATE_ORDER_NUMBER", "order number already exists")
	// ErrDuplicateEmail is returned by storage when the email unique
	// constraint rejects an insert.
	ErrDuplicateEmail = newError(KindConflict, "DUPLICATE_EMAIL", "email already exists")
	// ErrOrderCreationFailed is returned once order number retries are exhausted.
	ErrOrderCreationFailed = newError(KindConflict, "ORDER_CREATION_FAILED", "could not allocate an order number")

	// ErrInternal is the catch-all.
	ErrInternal = newError(KindInternal, "INTERNAL_ERROR", "internal server error")
)

// NewValidation builds a validation error with per-field details.
func NewValidation(fields map[string]string) *Error {
	e := *ErrValidation
	e.Fields = fields
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Message = "validation failed: " + strings.Join(names, ", ")
	}
	return &e
}

// Validation is a shortcut for a single-field validation error.
func Validation(field, reason string) *Error {
	return NewValidation(map[string]string{field: reason})
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	}
}

// StatusFor returns the HTTP status code for a kind.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unclassified errors become
// 500; their text is only exposed when exposeInternal is set.
func MapErrorToHTTP(err error, exposeInternal bool) *HTTPError {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Kind == KindInternal && !exposeInternal {
			msg = ErrInternal.Message
		}
		return &HTTPError{
			StatusCode: StatusFor(appErr.Kind),
			Message:    msg,
			Code:       appErr.Code,
			Details:    appErr.Fields,
		}
	}

	msg := ErrInternal.Message
	if exposeInternal && err != nil {
		msg = err.Error()
	}
	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    msg,
		Code:       ErrInternal.Code,
	}
}

// KindOf returns the kind of err, or KindInternal when unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
