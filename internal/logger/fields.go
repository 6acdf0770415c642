package logger

import "go.uber.org/zap/zapcore"

// Standard field names for structured logging.
// Use these constants instead of raw strings to keep keys consistent.
const (
	// Runs
	FieldJobID   = "job_id"
	FieldExpName = "exp_name"
	FieldRunDir  = "run_dir"
	FieldLogFile = "log_file"
	FieldState   = "state"
	FieldSource  = "source"

	// Scheduler
	FieldSchedulerState = "scheduler_state"
	FieldCommand        = "command"
	FieldExitCode       = "exit_code"

	// Remote
	FieldHost      = "host"
	FieldUser      = "user"
	FieldRemoteDir = "remote_dir"
	FieldPath      = "path"

	// Counts and timing
	FieldCount      = "count"
	FieldTotalCount = "total_count"
	FieldDurationMS = "duration_ms"

	FieldError = "error"
)

// Verbosity levels for the -v flag count.
const (
	VerbosityUser  = 0 // No flags: warnings and errors only
	VerbosityInfo  = 1 // -v: + progress of remote operations
	VerbosityDebug = 2 // -vv: + every remote command and registry write
)

// VerbosityToLevel maps verbosity flags (-v, -vv) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
