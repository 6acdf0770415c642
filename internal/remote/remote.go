// Package remote is the channel every orchestration step talks to the
// cluster through: shell commands, file transfer, existence checks and
// live tailing of remote files.
package remote

import (
	"context"
	"io"
	"strings"
)

// Result is the outcome of one remote command
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports a zero exit code
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Combined returns stdout and stderr joined for diagnostics
func (r Result) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	}
	return out + "\n" + errOut
}

// Channel executes commands and moves files on the remote host.
//
// Run reports a command's exit status in Result; its error is reserved for
// channel failures, which are marked errors.ErrRemoteIO. Implementations
// must be safe for concurrent use.
type Channel interface {
	Run(ctx context.Context, command string) (Result, error)
	PutFile(ctx context.Context, localPath, remotePath string) error
	GetDirectory(ctx context.Context, remotePath, localPath string) error
	Exists(ctx context.Context, path string) (bool, error)
	MakeDirectories(ctx context.Context, path string) error

	// Tail streams path as it grows: the whole file when fromStart is set,
	// otherwise its last lines lines, then appended content. The stream
	// ends when the reader is closed or ctx is done; closing it leaves
	// every remote process other than the tail untouched.
	Tail(ctx context.Context, path string, fromStart bool, lines int) (io.ReadCloser, error)

	Close() error
}
