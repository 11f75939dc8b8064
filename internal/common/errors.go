package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code so callers can use errors.Is with a bare code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// Error codes, one per failing pipeline step.
const (
	CodeFetch      = "FETCH_ERROR"
	CodeStore      = "STORE_ERROR"
	CodeLedger     = "LEDGER_ERROR"
	CodeExtraction = "EXTRACTION_ERROR"
	CodeRender     = "RENDER_ERROR"
	CodeNotify     = "NOTIFY_ERROR"
	CodeSink       = "SINK_ERROR"
	CodeConfig     = "CONFIG_ERROR"
)

// Sentinels usable with errors.Is against any wrapped AppError of the same code.
var (
	ErrFetch      = &AppError{Code: CodeFetch}
	ErrStore      = &AppError{Code: CodeStore}
	ErrLedger     = &AppError{Code: CodeLedger}
	ErrExtraction = &AppError{Code: CodeExtraction}
	ErrRender     = &AppError{Code: CodeRender}
	ErrNotify     = &AppError{Code: CodeNotify}
	ErrSink       = &AppError{Code: CodeSink}
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func FetchError(message string, cause error) error { return NewAppError(CodeFetch, message, cause) }
func StoreError(message string, cause error) error { return NewAppError(CodeStore, message, cause) }
func LedgerError(message string, cause error) error {
	return NewAppError(CodeLedger, message, cause)
}
func ExtractionError(message string, cause error) error {
	return NewAppError(CodeExtraction, message, cause)
}
func RenderError(message string, cause error) error { return NewAppError(CodeRender, message, cause) }
func NotifyError(message string, cause error) error { return NewAppError(CodeNotify, message, cause) }
func SinkError(message string, cause error) error   { return NewAppError(CodeSink, message, cause) }

// CodeOf returns the AppError code in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
