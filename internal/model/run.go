package model

import (
	"strings"
	"time"
)

// State is the lifecycle state of a run
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateFinished  State = "FINISHED"
	StateCancelled State = "CANCELLED"
	StateUnknown   State = "UNKNOWN"
)

// Terminal reports whether no further transition is expected
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	switch s {
	case StatePending, StateRunning, StateFinished, StateCancelled, StateUnknown:
		return true
	}
	return false
}

// ParseState converts a stored state string, falling back to UNKNOWN
func ParseState(s string) State {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return StateUnknown
	}
	return st
}

// Run is one registry record
type Run struct {
	ExpName        string    `json:"exp_name" yaml:"exp_name"`
	Params         Params    `json:"params" yaml:"params"`
	JobID          string    `json:"job_id" yaml:"job_id"`
	RunDir         string    `json:"run_dir" yaml:"run_dir"`
	LogFile        string    `json:"log_file" yaml:"log_file"`
	Fetched        bool      `json:"fetched" yaml:"fetched"`
	State          State     `json:"state" yaml:"state"`
	SchedulerState string    `json:"scheduler_state,omitempty" yaml:"scheduler_state,omitempty"` // last raw token from the query command
	GitCommit      string    `json:"git_commit,omitempty" yaml:"git_commit,omitempty"`
	GitBranch      string    `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
	GitDirty       bool      `json:"git_dirty,omitempty" yaml:"git_dirty,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at" yaml:"submitted_at"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy
func (r Run) Clone() Run {
	c := r
	c.Params = append(Params(nil), r.Params...)
	return c
}

// Selector picks runs by experiment name or job id. Empty fields match anything.
type Selector struct {
	ExpName string
	JobID   string
}

// Empty reports whether the selector has no criteria
func (s Selector) Empty() bool {
	return s.ExpName == "" && s.JobID == ""
}

// Matches reports whether r satisfies every set criterion
func (s Selector) Matches(r Run) bool {
	if s.ExpName != "" && r.ExpName != s.ExpName {
		return false
	}
	if s.JobID != "" && r.JobID != s.JobID {
		return false
	}
	return true
}

// String describes the selector for error messages
func (s Selector) String() string {
	switch {
	case s.ExpName != "" && s.JobID != "":
		return "experiment " + s.ExpName + " (job " + s.JobID + ")"
	case s.JobID != "":
		return "job " + s.JobID
	case s.ExpName != "":
		return "experiment " + s.ExpName
	}
	return "any run"
}
