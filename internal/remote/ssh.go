package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/skeema/knownhosts"
	sshagent "github.com/xanzy/ssh-agent"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
)

// SSHOptions configure an SSH channel
type SSHOptions struct {
	User string
	Host string // hostname or ~/.ssh/config alias
	Port int    // 0 = ssh_config or 22

	KeyFile  string
	Password string

	// PromptPassword asks on the terminal when every other method failed
	PromptPassword bool

	KnownHostsFile        string // default ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool

	DialTimeout time.Duration
	Logger      *zap.SugaredLogger
}

// SSH is a Channel over one SSH client connection. Every call opens its
// own session so calls may run concurrently.
type SSH struct {
	client    *ssh.Client
	agentConn net.Conn
	addr      string
	logger    *zap.SugaredLogger
}

var _ Channel = (*SSH)(nil)

// Dial resolves host aliases, authenticates and connects
func Dial(ctx context.Context, opts SSHOptions) (*SSH, error) {
	log := logger.OrNop(opts.Logger)

	host, port, user := resolveHost(opts)
	if user == "" {
		return nil, errors.Configurationf("no remote user for host %s", opts.Host)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	auth, agentConn, err := authMethods(opts, user, host)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, algorithms, err := hostKeyCheck(opts, addr)
	if err != nil {
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, err
	}

	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	config := &ssh.ClientConfig{
		User:              user,
		Auth:              auth,
		HostKeyCallback:   hostKeyCallback,
		HostKeyAlgorithms: algorithms,
		Timeout:           timeout,
	}

	log.Debugw("Dialing", logger.FieldHost, addr, logger.FieldUser, user)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, errors.RemoteIOf(err, "failed to connect to %s", addr)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if agentConn != nil {
			agentConn.Close()
		}
		if knownhosts.IsHostUnknown(err) {
			return nil, errors.WithHintf(errors.RemoteIOf(err, "host key for %s is not in known_hosts", addr),
				"run `ssh %s@%s` once to record the key, or set ssh.insecure_ignore_host_key", user, host)
		}
		if knownhosts.IsHostKeyChanged(err) {
			return nil, errors.WithHint(errors.RemoteIOf(err, "host key for %s changed", addr),
				"verify the host and update known_hosts")
		}
		return nil, errors.RemoteIOf(err, "ssh handshake with %s failed", addr)
	}

	log.Infow("Connected", logger.FieldHost, addr, logger.FieldUser, user)

	return &SSH{
		client:    ssh.NewClient(c, chans, reqs),
		agentConn: agentConn,
		addr:      addr,
		logger:    log,
	}, nil
}

// resolveHost applies ~/.ssh/config for aliases, then explicit options
func resolveHost(opts SSHOptions) (host string, port int, user string) {
	host = opts.Host
	if h := ssh_config.Get(opts.Host, "HostName"); h != "" {
		host = h
	}

	port = opts.Port
	if port == 0 {
		if p, err := strconv.Atoi(ssh_config.Get(opts.Host, "Port")); err == nil && p > 0 {
			port = p
		} else {
			port = 22
		}
	}

	user = opts.User
	if user == "" {
		user = ssh_config.Get(opts.Host, "User")
	}
	return host, port, user
}

// LoginUser returns the user a connection to host logs in as: user when
// set, else the ssh_config User, else $USER
func LoginUser(host, user string) string {
	if _, _, u := resolveHost(SSHOptions{Host: host, User: user, Port: 22}); u != "" {
		return u
	}
	return os.Getenv("USER")
}

// authMethods returns agent, key file and password methods in that order
func authMethods(opts SSHOptions, user, host string) ([]ssh.AuthMethod, net.Conn, error) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if sshagent.Available() {
		ag, conn, err := sshagent.New()
		if err == nil {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(ag.Signers))
		}
	}

	keyFile := opts.KeyFile
	if keyFile == "" {
		if f := ssh_config.Get(opts.Host, "IdentityFile"); f != "" && f != "~/.ssh/identity" {
			keyFile = expandHome(f)
		}
	}
	if keyFile != "" {
		signer, err := loadKey(keyFile)
		if err != nil {
			if agentConn != nil {
				agentConn.Close()
			}
			return nil, nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	} else if opts.PromptPassword && term.IsTerminal(int(os.Stdin.Fd())) {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return readSecret(fmt.Sprintf("%s@%s's password: ", user, host))
		}))
	}

	if len(methods) == 0 {
		return nil, nil, errors.WithHint(
			errors.Configurationf("no ssh authentication method available for %s@%s", user, host),
			"start ssh-agent, pass --key, or set --password-env",
		)
	}
	return methods, agentConn, nil
}

func loadKey(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Configurationf("failed to read key file %s: %v", path, err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && term.IsTerminal(int(os.Stdin.Fd())) {
		passphrase, perr := readSecret(fmt.Sprintf("Enter passphrase for %s: ", path))
		if perr != nil {
			return nil, perr
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	if err != nil {
		return nil, errors.Configurationf("failed to parse key file %s: %v", path, err)
	}
	return signer, nil
}

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read from terminal")
	}
	return string(secret), nil
}

func hostKeyCheck(opts SSHOptions, addr string) (ssh.HostKeyCallback, []string, error) {
	if opts.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil, nil
	}

	path := opts.KnownHostsFile
	if path == "" {
		path = expandHome("~/.ssh/known_hosts")
	}

	kh, err := knownhosts.New(path)
	if err != nil {
		return nil, nil, errors.WithHint(
			errors.Configurationf("failed to load known_hosts %s: %v", path, err),
			"set ssh.known_hosts or ssh.insecure_ignore_host_key",
		)
	}
	return kh.HostKeyCallback(), kh.HostKeyAlgorithms(addr), nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Close ends the connection
func (s *SSH) Close() error {
	if s.agentConn != nil {
		s.agentConn.Close()
	}
	return s.client.Close()
}

// Run executes command and waits for it, or kills it when ctx is done
func (s *SSH) Run(ctx context.Context, command string) (Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, errors.RemoteIOf(err, "failed to open session on %s", s.addr)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	s.logger.Debugw("Running", logger.FieldCommand, command)

	if err := wait(ctx, session, command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitStatus(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, errors.RemoteIOf(err, "command failed on %s: %s", s.addr, command)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// wait starts command and waits for it, signalling the remote side on cancellation
func wait(ctx context.Context, session *ssh.Session, command string) error {
	if err := session.Start(command); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return ctx.Err()
	}
}

// PutFile streams localPath into remotePath with cat
func (s *SSH) PutFile(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", localPath)
	}
	defer f.Close()

	session, err := s.client.NewSession()
	if err != nil {
		return errors.RemoteIOf(err, "failed to open session on %s", s.addr)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdin = f
	session.Stderr = &stderr

	s.logger.Debugw("Uploading", logger.FieldPath, remotePath)

	if err := wait(ctx, session, "cat > "+Quote(remotePath)); err != nil {
		return errors.RemoteIOf(err, "failed to upload %s to %s: %s", localPath, remotePath, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// GetDirectory copies remotePath recursively into localPath through a tar stream
func (s *SSH) GetDirectory(ctx context.Context, remotePath, localPath string) error {
	session, err := s.client.NewSession()
	if err != nil {
		return errors.RemoteIOf(err, "failed to open session on %s", s.addr)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return errors.RemoteIO(err, "failed to attach to tar output")
	}
	var stderr bytes.Buffer
	session.Stderr = &stderr

	if err := session.Start("tar -C " + Quote(remotePath) + " -cf - ."); err != nil {
		return errors.RemoteIOf(err, "failed to start download of %s", remotePath)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
	})
	defer stop()

	s.logger.Debugw("Downloading", logger.FieldPath, remotePath)

	extractErr := ExtractTar(stdout, localPath)
	if extractErr != nil {
		// Drain so Wait does not block on a full window
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := session.Wait()

	switch {
	case ctx.Err() != nil:
		return errors.RemoteIOf(ctx.Err(), "download of %s interrupted", remotePath)
	case waitErr != nil:
		return errors.RemoteIOf(waitErr, "failed to download %s: %s", remotePath, strings.TrimSpace(stderr.String()))
	case extractErr != nil:
		return errors.Wrapf(extractErr, "failed to unpack %s into %s", remotePath, localPath)
	}
	return nil
}

// Exists runs test -e: exit 0 is true, 1 is false, anything else an error
func (s *SSH) Exists(ctx context.Context, path string) (bool, error) {
	res, err := s.Run(ctx, "test -e "+Quote(path))
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	}
	return false, errors.RemoteIOf(errors.Newf("exit code %d", res.ExitCode), "failed to check %s: %s", path, res.Combined())
}

// MakeDirectories runs mkdir -p
func (s *SSH) MakeDirectories(ctx context.Context, path string) error {
	res, err := s.Run(ctx, "mkdir -p "+Quote(path))
	if err != nil {
		return err
	}
	if !res.OK() {
		return errors.RemoteIOf(errors.Newf("exit code %d", res.ExitCode), "failed to create %s: %s", path, res.Combined())
	}
	return nil
}

// Tail starts a remote follower on path
func (s *SSH) Tail(ctx context.Context, path string, fromStart bool, lines int) (io.ReadCloser, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, errors.RemoteIOf(err, "failed to open session on %s", s.addr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, errors.RemoteIO(err, "failed to attach to tail input")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.RemoteIO(err, "failed to attach to tail output")
	}

	if err := session.Start(TailCommand(path, fromStart, lines)); err != nil {
		session.Close()
		return nil, errors.RemoteIOf(err, "failed to tail %s", path)
	}

	t := &tailReader{r: stdout, stdin: stdin, session: session}
	context.AfterFunc(ctx, func() { t.Close() })
	return t, nil
}

type tailReader struct {
	r       io.Reader
	stdin   io.WriteCloser
	session *ssh.Session
	once    sync.Once
}

func (t *tailReader) Read(p []byte) (int, error) {
	return t.r.Read(p)
}

// Close ends stdin so the remote wrapper kills its tail, then drops the session
func (t *tailReader) Close() error {
	t.once.Do(func() {
		_ = t.stdin.Close()
		_ = t.session.Close()
	})
	return nil
}
