// Package scheduler turns the workload manager's command surface into
// command lines and interprets what it prints back.
package scheduler

import (
	"strings"
	"unicode"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/placeholder"
	"github.com/sourceplane/slurmster/internal/remote"
)

// Commands renders submit, query and cancel command lines
type Commands struct {
	Submit string
	Query  string
	Cancel string
}

// FromConfig takes the command templates of a normalised experiment file
func FromConfig(cfg model.SlurmConfig) Commands {
	return Commands{Submit: cfg.SubmitCommand, Query: cfg.QueryCommand, Cancel: cfg.CancelCommand}
}

// SubmitLine returns the command submitting script from inside remoteDir
func (c Commands) SubmitLine(script, remoteDir string) (string, error) {
	line, err := placeholder.Substitute(c.Submit, map[string]string{
		"script":     remote.Quote(script),
		"remote_dir": remote.Quote(remoteDir),
	})
	if err != nil {
		return "", errors.Wrap(err, "slurm.submit_command")
	}
	return "cd " + remote.Quote(remoteDir) + " && " + line, nil
}

// QueryLine returns the command printing the state token of jobID
func (c Commands) QueryLine(jobID string) (string, error) {
	line, err := placeholder.Substitute(c.Query, map[string]string{"job_id": remote.Quote(jobID)})
	if err != nil {
		return "", errors.Wrap(err, "slurm.query_command")
	}
	return line, nil
}

// CancelLine returns the command cancelling jobID
func (c Commands) CancelLine(jobID string) (string, error) {
	line, err := placeholder.Substitute(c.Cancel, map[string]string{"job_id": remote.Quote(jobID)})
	if err != nil {
		return "", errors.Wrap(err, "slurm.cancel_command")
	}
	return line, nil
}

// ParseJobID returns the first purely numeric token of the submit output.
// "Submitted batch job 42" and the --parsable form "42;cluster" both yield "42".
func ParseJobID(output string) (string, error) {
	tokens := strings.FieldsFunc(output, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';'
	})
	for _, tok := range tokens {
		if isDigits(tok) {
			return tok, nil
		}
	}
	return "", errors.WithDetailf(
		errors.Parsef("no job id in submit output"),
		"output: %q", strings.TrimSpace(output),
	)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
