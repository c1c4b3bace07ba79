package chartbind

import (
	"errors"
	"fmt"
)

const (
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	CodeRenderBackend    = "RENDER_BACKEND"
	CodeNotBound         = "NOT_BOUND"
	CodeAlreadyBound     = "ALREADY_BOUND"
	CodeUnknownHook      = "UNKNOWN_HOOK"
	CodeNodeNotFound     = "NODE_NOT_FOUND"
	CodeValidation       = "VALIDATION"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeCaptureFailed    = "CAPTURE_FAILED"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// HasCode reports whether err carries a CodedError with the given code.
func HasCode(err error, code string) bool {
	var coded *CodedError
	return errors.As(err, &coded) && coded.Code == code
}

// IsMalformed reports whether err is a malformed-payload failure.
func IsMalformed(err error) bool { return HasCode(err, CodeMalformedPayload) }

// IsBackend reports whether err is a rendering-backend failure.
func IsBackend(err error) bool { return HasCode(err, CodeRenderBackend) }
