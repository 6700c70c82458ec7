package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation       = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal         = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrUnauthorized     = NewError("UNAUTHORIZED", "sender is not allowed to perform this command", http.StatusForbidden)
	ErrMediaUnavailable = NewError("MEDIA_UNAVAILABLE", "all media acquisition strategies exhausted", http.StatusBadGateway)
	ErrOracleUnparsable = NewError("ORACLE_UNPARSABLE", "oracle response contained no parsable verdict", http.StatusBadGateway)
	ErrOracleTransport  = NewError("ORACLE_TRANSPORT", "oracle request failed", http.StatusServiceUnavailable)
	ErrNoSuchPayee      = NewError("NO_SUCH_PAYEE", "matched name is not on the ledger", http.StatusNotFound)
	ErrPersistence      = NewError("PERSISTENCE_ERROR", "ledger persistence failed", http.StatusInternalServerError)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes sentinel comparisons with errors.Is work on wrapped copies.
func (e *Error) Is(target error) bool {
	var appErr *Error
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrValidation.Code, ErrUnauthorized.Code, ErrNoSuchPayee.Code, ErrOracleUnparsable.Code:
		return false
	}
	return true
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return !e.IsRetryable()
}

func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	// The struct copy shares the Details map with the receiver, which may be
	// a package-level sentinel used by concurrent pipelines. Mutations must
	// go into a private copy.
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsMediaUnavailable(err error) bool {
	return hasCode(err, ErrMediaUnavailable.Code)
}

// IsOracleError reports whether err came out of the verification oracle,
// regardless of whether the transport or the response parsing failed.
func IsOracleError(err error) bool {
	return hasCode(err, ErrOracleUnparsable.Code) || hasCode(err, ErrOracleTransport.Code)
}

func IsUnauthorized(err error) bool {
	return hasCode(err, ErrUnauthorized.Code)
}

func IsPersistence(err error) bool {
	return hasCode(err, ErrPersistence.Code)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
