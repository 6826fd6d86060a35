package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

const (
	defaultSSHPort       = 22
	defaultRemoteCommand = "q chat"
	sshConnectTimeout    = 30 // seconds, passed to ssh -o ConnectTimeout
)

// runFunc executes a local command and returns its output streams. It is a
// struct field so tests can swap it for a fake and never open a connection.
type runFunc func(ctx context.Context, name string, args []string) (stdout, stderr string, err error)

// RemoteShell runs a review CLI on another machine over ssh and reads the
// model's reply from stdout. The system and hunk prompts travel as one
// quoted argument on the remote command line.
type RemoteShell struct {
	host            string
	port            int
	user            string
	identity        string
	command         string
	insecureHostKey bool
	timeout         time.Duration
	logger          *zap.Logger

	lookPath func(string) (string, error)
	run      runFunc
}

// NewRemoteShell creates a remote shell backend. Construction never fails;
// an unconfigured host or missing ssh binary is reported per call.
func NewRemoteShell(opts Options) *RemoteShell {
	opts = opts.withDefaults()
	identity := opts.IdentityFile
	if identity == "" {
		identity = os.Getenv("REFRACT_SSH_KEY")
	}
	port := opts.Port
	if port == 0 {
		port = defaultSSHPort
	}
	command := opts.RemoteCommand
	if command == "" {
		command = defaultRemoteCommand
	}
	return &RemoteShell{
		host:            opts.Host,
		port:            port,
		user:            opts.User,
		identity:        identity,
		command:         command,
		insecureHostKey: opts.InsecureHostKey,
		timeout:         opts.Timeout,
		logger:          opts.Logger,
		lookPath:        exec.LookPath,
		run:             runCommand,
	}
}

func (r *RemoteShell) Name() string { return NameRemoteShell }

func (r *RemoteShell) ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error) {
	if r.host == "" {
		return "", &Error{Backend: r.Name(), Kind: KindDependencyMissing, Detail: "no remote host configured"}
	}
	if _, err := r.lookPath("ssh"); err != nil {
		return "", &Error{Backend: r.Name(), Kind: KindDependencyMissing, Detail: "ssh binary not found in PATH", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := r.sshArgs(review.CombinedPrompt(h, guidelines))
	r.logger.Debug("running remote review",
		zap.String("host", r.host),
		zap.String("hunk", h.ID()))

	stdout, stderr, err := r.run(ctx, "ssh", args)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{
				Backend: r.Name(),
				Kind:    KindTimeout,
				Detail:  fmt.Sprintf("ssh command exceeded %s", r.timeout),
				Err:     err,
			}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return "", &Error{
			Backend: r.Name(),
			Kind:    KindUnreachable,
			Detail:  "ssh command failed: " + snippet(detail),
			Err:     err,
		}
	}

	reply := strings.TrimSpace(stdout)
	if reply == "" {
		return "", &Error{Backend: r.Name(), Kind: KindUnreachable, Detail: "remote tool produced no output"}
	}
	return reply, nil
}

// sshArgs builds the full ssh argument list. The remote command and its
// quoted prompt ride as the final argument and are interpreted by the remote
// shell.
func (r *RemoteShell) sshArgs(prompt string) []string {
	hostKey := "accept-new"
	if r.insecureHostKey {
		hostKey = "no"
	}
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=" + hostKey,
		"-o", "ConnectTimeout=" + strconv.Itoa(sshConnectTimeout),
		"-p", strconv.Itoa(r.port),
	}
	if r.identity != "" {
		args = append(args, "-i", r.identity)
	}
	target := r.host
	if r.user != "" {
		target = r.user + "@" + r.host
	}
	return append(args, target, r.command+" --prompt "+shellQuote(prompt))
}

// shellQuote wraps s in single quotes for the remote shell. Single quotes
// neutralize every metacharacter except the quote itself.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runCommand(ctx context.Context, name string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
