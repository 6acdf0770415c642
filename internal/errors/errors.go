// Package errors provides error handling for slurmster.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping, hints)
// and defines the failure taxonomy every orchestration operation reports
// through. Each category is a reference error; concrete failures are marked
// with it so callers can branch with errors.Is without caring how the error
// was built:
//
//	if errors.Is(err, errors.ErrLookup) {
//	    // no run matched the selector
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	FlattenHints = crdb.FlattenHints
	GetAllHints  = crdb.GetAllHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Mark      = crdb.Mark
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	GetStack  = crdb.GetReportableStackTrace
)

// Failure categories.
var (
	// ErrConfiguration: bad or missing grid, command or experiment file. Raised before any remote call.
	ErrConfiguration = New("configuration error")

	// ErrTemplate: a placeholder could not be resolved. Raised before any remote call for the run.
	ErrTemplate = New("template error")

	// ErrSubmission: the submit command exited non-zero. The registry is untouched.
	ErrSubmission = New("submission error")

	// ErrParse: no job id could be recovered from the submit output. The registry is untouched.
	ErrParse = New("parse error")

	// ErrLookup: no single registry record matched the requested experiment name or job id.
	ErrLookup = New("lookup error")

	// ErrRemoteIO: the remote channel failed. Treated as missing evidence during reconciliation and fetch.
	ErrRemoteIO = New("remote io error")

	// ErrCancellation: the cancel command exited non-zero. The registry is untouched.
	ErrCancellation = New("cancellation error")
)

// Configurationf returns a new error marked as ErrConfiguration.
func Configurationf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrConfiguration)
}

// Submissionf returns a new error marked as ErrSubmission.
func Submissionf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrSubmission)
}

// Parsef returns a new error marked as ErrParse.
func Parsef(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrParse)
}

// Lookupf returns a new error marked as ErrLookup.
func Lookupf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrLookup)
}

// Cancellationf returns a new error marked as ErrCancellation.
func Cancellationf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrCancellation)
}

// RemoteIO wraps a channel failure and marks it as ErrRemoteIO.
func RemoteIO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(crdb.WrapWithDepth(1, err, msg), ErrRemoteIO)
}

// RemoteIOf is RemoteIO with a formatted message.
func RemoteIOf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrRemoteIO)
}

// Category returns the name of the failure category err belongs to,
// or "error" when it carries none.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrConfiguration):
		return "ConfigurationError"
	case Is(err, ErrTemplate):
		return "TemplateError"
	case Is(err, ErrSubmission):
		return "SubmissionError"
	case Is(err, ErrParse):
		return "ParseError"
	case Is(err, ErrLookup):
		return "LookupError"
	case Is(err, ErrRemoteIO):
		return "RemoteIOError"
	case Is(err, ErrCancellation):
		return "CancellationError"
	default:
		return "error"
	}
}
