package errors

import "errors"

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps handler differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error taxonomy codes, per the gateway's error handling design. Every AppError
// constructed by a domain component uses one of these as its Code.
const (
	CodeValidation        = "validation"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeIntegrity         = "integrity"
	CodeUpstreamTransient = "upstream_transient"
	CodeUpstreamAuth      = "upstream_auth"
	CodeUpstreamRate      = "upstream_rate"
	CodeInternal          = "internal"
)

// Validation wraps a client-facing input error.
func Validation(message string, err error) error { return Wrap(CodeValidation, message, err) }

// NotFound wraps an entity-lookup miss.
func NotFound(message string, err error) error { return Wrap(CodeNotFound, message, err) }

// Integrity wraps a content-hash or data-consistency mismatch.
func Integrity(message string, err error) error { return Wrap(CodeIntegrity, message, err) }

// UpstreamTransient wraps a retryable network/timeout failure from a remote dependency.
func UpstreamTransient(message string, err error) error {
	return Wrap(CodeUpstreamTransient, message, err)
}

// UpstreamAuth wraps a 401-class failure from a provider.
func UpstreamAuth(message string, err error) error { return Wrap(CodeUpstreamAuth, message, err) }

// UpstreamRate wraps a 429-class failure from a provider.
func UpstreamRate(message string, err error) error { return Wrap(CodeUpstreamRate, message, err) }

// Internal wraps an unexpected, unclassified failure.
func Internal(message string, err error) error { return Wrap(CodeInternal, message, err) }
