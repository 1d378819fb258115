package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/YusefSaid/Shell-scripting/pkg/daemonconfig"
	"github.com/YusefSaid/Shell-scripting/pkg/platform"
	"github.com/YusefSaid/Shell-scripting/pkg/resources"
)

// ErrorClass decides whether a failure stops the run.
type ErrorClass string

const (
	// ErrorClassFatal aborts the run at the current step.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassNonFatal is recorded against one resource and the run
	// continues.
	ErrorClassNonFatal ErrorClass = "non_fatal"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Step is the step that was running.
	Step Step `json:"step,omitempty"`

	// Resource is the resource the step was acting on, if any.
	Resource string `json:"resource,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains raw diagnostic context, such as the identity markers
	// of an unsupported platform.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Step != "" && e.Resource != "" {
		return fmt.Sprintf("[%s] %s (step=%s, resource=%s): %s",
			e.Class, e.Message, e.Step, e.Resource, e.unwrapMessage())
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step=%s): %s",
			e.Class, e.Message, e.Step, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassFatal,
		Message: message,
		Err:     err,
	}
}

// NewNonFatalError creates a new non-fatal error.
func NewNonFatalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassNonFatal,
		Message: message,
		Err:     err,
	}
}

// WithStep adds step context to an error.
func (e *EngineError) WithStep(step Step) *EngineError {
	e.Step = step
	return e
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsFatal returns true if the error is classified as fatal.
func IsFatal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}

// IsNonFatal returns true if the error is classified as non-fatal.
func IsNonFatal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNonFatal
	}
	return false
}

// CodeOf returns the code of a classified error, or "".
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Error codes.
const (
	ErrCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	ErrCodeInstallationFailed  = "INSTALLATION_FAILED"
	ErrCodeCorruptConfig       = "CORRUPT_CONFIG"
	ErrCodeConfigWriteFailed   = "CONFIG_WRITE_FAILED"
	ErrCodeRestartFailed       = "RESTART_FAILED"
	ErrCodeMembershipFailed    = "MEMBERSHIP_FAILED"
	ErrCodeAccountFailed       = "ACCOUNT_FAILED"
	ErrCodeVerifyFailed        = "VERIFY_FAILED"
	ErrCodeCancelled           = "CANCELLED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// classify maps a component error onto the run's error taxonomy.
func classify(step Step, resource string, err error) *EngineError {
	var existing *EngineError
	if errors.As(err, &existing) {
		return existing
	}

	var (
		unsupported *platform.UnsupportedPlatformError
		install     *resources.InstallError
		membership  *resources.MembershipError
		account     *resources.AccountError
		corrupt     *daemonconfig.CorruptError
	)

	var e *EngineError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e = NewFatalError("run interrupted", err).WithCode(ErrCodeCancelled)
	case errors.As(err, &unsupported):
		e = NewFatalError("unsupported platform", err).
			WithCode(ErrCodeUnsupportedPlatform).
			WithDetail("markers", unsupported.Markers)
	case errors.As(err, &install):
		e = NewFatalError("runtime installation failed", err).
			WithCode(ErrCodeInstallationFailed).
			WithDetail("stage", install.Stage)
		if len(install.Attempts) > 0 {
			e.WithDetail("attempts", install.Attempts)
		}
	case errors.As(err, &membership):
		e = NewNonFatalError("membership failed", err).
			WithCode(ErrCodeMembershipFailed).
			WithDetail("attempts", membership.Attempts)
	case errors.As(err, &account):
		e = NewNonFatalError(account.Kind+" creation failed", err).
			WithCode(ErrCodeAccountFailed)
	case errors.As(err, &corrupt):
		e = NewFatalError("corrupt daemon config", err).
			WithCode(ErrCodeCorruptConfig).
			WithDetail("path", corrupt.Path)
	default:
		e = NewFatalError("unexpected failure", err).WithCode(ErrCodeInternal)
	}

	return e.WithStep(step).WithResource(resource)
}
