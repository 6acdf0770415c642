// Package remotetest provides an in-memory remote.Channel for tests.
package remotetest

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/remote"
)

// Response is a scripted reply to commands containing Match
type Response struct {
	Match  string
	Result remote.Result
	Err    error
	Times  int // 0 = unlimited
}

// Transfer records one PutFile or GetDirectory call
type Transfer struct {
	Local  string
	Remote string
}

// TailCall records one Tail call
type TailCall struct {
	Path      string
	FromStart bool
	Lines     int
}

// Channel is a fake remote host: a flat file map plus scripted command replies.
// The zero value is not usable; call New.
type Channel struct {
	mu sync.Mutex

	files map[string]string
	dirs  map[string]bool

	responses []*Response

	Commands []string
	Puts     []Transfer
	Gets     []Transfer
	Tails    []TailCall

	// Injected failures
	ExistsErr error
	PutErr    error
	GetErr    error
	MkdirErr  error
	TailErr   error

	// Follow keeps Tail readers open after the content until closed or cancelled
	Follow bool

	closed bool
}

var _ remote.Channel = (*Channel)(nil)

// New returns an empty fake host
func New() *Channel {
	return &Channel{
		files: make(map[string]string),
		dirs:  make(map[string]bool),
	}
}

// SetFile creates or replaces a remote file
func (c *Channel) SetFile(p, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path.Clean(p)] = content
}

// RemoveFile deletes a remote file
func (c *Channel) RemoveFile(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path.Clean(p))
}

// File returns a remote file's content
func (c *Channel) File(p string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.files[path.Clean(p)]
	return content, ok
}

// HasDir reports whether MakeDirectories created p
func (c *Channel) HasDir(p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirs[path.Clean(p)]
}

// Respond scripts the reply for commands containing match. Later
// registrations win over earlier ones.
func (c *Channel) Respond(match string, result remote.Result, err error) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &Response{Match: match, Result: result, Err: err}
	c.responses = append(c.responses, r)
	return r
}

// CommandsMatching returns recorded commands containing substr
func (c *Channel) CommandsMatching(substr string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, cmd := range c.Commands {
		if strings.Contains(cmd, substr) {
			out = append(out, cmd)
		}
	}
	return out
}

// Run records command and returns the newest matching scripted response
func (c *Channel) Run(ctx context.Context, command string) (remote.Result, error) {
	if err := ctx.Err(); err != nil {
		return remote.Result{}, errors.RemoteIO(err, "fake run")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Commands = append(c.Commands, command)

	for i := len(c.responses) - 1; i >= 0; i-- {
		r := c.responses[i]
		if !strings.Contains(command, r.Match) {
			continue
		}
		if r.Times < 0 {
			continue
		}
		if r.Times > 0 {
			r.Times--
			if r.Times == 0 {
				r.Times = -1
			}
		}
		if r.Err != nil {
			return remote.Result{}, errors.RemoteIO(r.Err, "fake run")
		}
		return r.Result, nil
	}
	return remote.Result{}, nil
}

// PutFile copies a local file into the fake file map
func (c *Channel) PutFile(ctx context.Context, localPath, remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Puts = append(c.Puts, Transfer{Local: localPath, Remote: remotePath})
	if c.PutErr != nil {
		return errors.RemoteIO(c.PutErr, "fake put")
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", localPath)
	}
	c.files[path.Clean(remotePath)] = string(data)
	return nil
}

// GetDirectory writes every fake file below remotePath into localPath
func (c *Channel) GetDirectory(ctx context.Context, remotePath, localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets = append(c.Gets, Transfer{Local: localPath, Remote: remotePath})
	if c.GetErr != nil {
		return errors.RemoteIO(c.GetErr, "fake get")
	}

	prefix := path.Clean(remotePath) + "/"
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return err
	}
	for name, content := range c.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		target := filepath.Join(localPath, filepath.FromSlash(strings.TrimPrefix(name, prefix)))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports files and created directories
func (c *Channel) Exists(ctx context.Context, p string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ExistsErr != nil {
		return false, errors.RemoteIO(c.ExistsErr, "fake exists")
	}
	p = path.Clean(p)
	if _, ok := c.files[p]; ok {
		return true, nil
	}
	return c.dirs[p], nil
}

// MakeDirectories records p and its parents
func (c *Channel) MakeDirectories(ctx context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MkdirErr != nil {
		return errors.RemoteIO(c.MkdirErr, "fake mkdir")
	}
	for d := path.Clean(p); d != "." && d != "/"; d = path.Dir(d) {
		c.dirs[d] = true
	}
	return nil
}

// Tail serves the current content of p, honouring fromStart and lines
func (c *Channel) Tail(ctx context.Context, p string, fromStart bool, lines int) (io.ReadCloser, error) {
	c.mu.Lock()
	c.Tails = append(c.Tails, TailCall{Path: p, FromStart: fromStart, Lines: lines})
	tailErr := c.TailErr
	content := c.files[path.Clean(p)]
	follow := c.Follow
	c.mu.Unlock()

	if tailErr != nil {
		return nil, errors.RemoteIO(tailErr, "fake tail")
	}

	if !fromStart {
		content = lastLines(content, lines)
	}

	if !follow {
		return io.NopCloser(strings.NewReader(content)), nil
	}

	pr, pw := io.Pipe()
	go func() {
		if _, err := io.WriteString(pw, content); err != nil {
			return
		}
		<-ctx.Done()
		pw.Close()
	}()
	return &followReader{PipeReader: pr}, nil
}

type followReader struct {
	*io.PipeReader
}

func (f *followReader) Close() error {
	return f.PipeReader.CloseWithError(io.EOF)
}

// Close marks the fake closed
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Paths lists every fake file, sorted
func (c *Channel) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func lastLines(content string, n int) string {
	if n <= 0 {
		return ""
	}
	var all []string
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		all = append(all, sc.Text())
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	if len(all) == 0 {
		return ""
	}
	return strings.Join(all, "\n") + "\n"
}
