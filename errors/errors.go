package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Kind returns the fault class of the error.
func (e *AppError) Kind() Kind { return KindOfCode(e.Code) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Item-local faults ---

// ItemFault creates an item-local fault raised by stage while processing source.
// An existing AppError cause keeps its code.
func ItemFault(source, stage string, cause error) *AppError {
	code := ErrCodeItemFault
	msg := "item processing failed"
	if app, ok := AsAppError(cause); ok && app.Kind() == KindItem {
		code, msg = app.Code, app.Message
	}
	return &AppError{
		Code: code, Message: msg, Cause: cause,
		Details: map[string]any{"source": source, "stage": stage},
	}
}

// Decode creates an item-local fault for content that could not be decoded.
func Decode(source string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDecode, Message: fmt.Sprintf("cannot decode %s", source),
		Details: map[string]any{"source": source}, Cause: cause,
	}
}

// Metadata creates an item-local fault for unreadable metadata.
func Metadata(source string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeMetadata, Message: fmt.Sprintf("cannot read metadata of %s", source),
		Details: map[string]any{"source": source}, Cause: cause,
	}
}

// Write creates an item-local fault for a destination that could not be written.
func Write(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeWrite, Message: fmt.Sprintf("cannot write %s", path),
		Details: map[string]any{"path": path}, Cause: cause,
	}
}

// --- Configuration faults ---

// ConfigFault creates a generic configuration fault.
func ConfigFault(message string) *AppError {
	return &AppError{Code: ErrCodeConfigFault, Message: message}
}

// UnknownStage creates a configuration fault for a name missing from the registry.
func UnknownStage(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownStage, Message: fmt.Sprintf("unknown stage %q", name),
		Details: map[string]any{"stage": name},
	}
}

// Topology creates a configuration fault for a malformed stream graph.
func Topology(stream, reason string) *AppError {
	return &AppError{
		Code: ErrCodeTopology, Message: fmt.Sprintf("stream %q: %s", stream, reason),
		Details: map[string]any{"stream": stream},
	}
}

// InvalidArgument creates a configuration fault for a bad option value.
func InvalidArgument(field, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Details: map[string]any{"field": field},
	}
}

// --- Systemic faults ---

// Systemic creates a generic systemic fault.
func Systemic(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSystemic, Message: message, Cause: cause}
}

// InputUnavailable creates a systemic fault for a missing or unreadable input root.
func InputUnavailable(root string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInputUnavailable, Message: fmt.Sprintf("input root %s is not readable", root),
		Details: map[string]any{"root": root}, Cause: cause,
	}
}

// OutputUnavailable creates a systemic fault for an output root that cannot be written.
func OutputUnavailable(root string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeOutputUnavailable, Message: fmt.Sprintf("output root %s is not writable", root),
		Details: map[string]any{"root": root}, Cause: cause,
	}
}

// Internal creates a systemic fault for a broken engine invariant.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "unexpected internal error", Cause: cause}
}

// --- Classification ---

// KindOf classifies err. Errors that carry no AppError are systemic: the
// engine cannot prove they are isolated to one item. Context cancellation
// is also systemic.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if app, ok := AsAppError(err); ok {
		return app.Kind()
	}
	return KindSystemic
}

// IsItemFault reports whether err is isolated to one item.
func IsItemFault(err error) bool { return KindOf(err) == KindItem }

// IsConfig reports whether err is a configuration fault.
func IsConfig(err error) bool { return KindOf(err) == KindConfig }

// IsSystemic reports whether err must abort the run.
func IsSystemic(err error) bool { return KindOf(err) == KindSystemic }

// Is, As and Join re-export the standard helpers so callers need one import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
