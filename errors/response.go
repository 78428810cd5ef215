package errors

import (
	stderrors "errors"
)

// Exit codes reported by the command line.
const (
	ExitOK       = 0
	ExitSystemic = 1
	ExitConfig   = 2
)

// ExitCode maps a run error to the process exit code. Item-local faults
// never reach here; a run that only dropped items exits cleanly.
func ExitCode(err error) int {
	switch KindOf(err) {
	case KindNone, KindItem:
		return ExitOK
	case KindConfig:
		return ExitConfig
	default:
		return ExitSystemic
	}
}

// FaultRecord is the summary form of an item-local fault.
type FaultRecord struct {
	Source  string    `json:"source"`
	Stage   string    `json:"stage"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ToRecord converts an AppError to a FaultRecord for the run summary.
func (e *AppError) ToRecord() FaultRecord {
	r := FaultRecord{Code: e.Code, Message: e.Error()}
	if s, ok := e.Details["source"].(string); ok {
		r.Source = s
	}
	if s, ok := e.Details["stage"].(string); ok {
		r.Stage = s
	}
	return r
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
