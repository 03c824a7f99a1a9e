// Package executor runs external commands for command-backed checks, either
// locally or on a remote host over ssh.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Executor runs argv with a time limit and returns its standard output.
// Failures are reported as *Failure.
type Executor interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (string, error)
}

// Kind classifies a command failure.
type Kind int

const (
	NonZeroExit Kind = iota + 1
	// Timeout means the command's time limit or a caller deadline expired.
	Timeout
	LaunchError
	// Canceled means the caller's context was cancelled, e.g. on SIGINT.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case NonZeroExit:
		return "non-zero exit"
	case Timeout:
		return "timeout"
	case LaunchError:
		return "launch error"
	case Canceled:
		return "canceled"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrEmptyCommand is returned when Run is called without a program.
var ErrEmptyCommand = errors.New("empty command")

// Failure describes why a command did not complete successfully.
type Failure struct {
	Kind     Kind
	Argv     []string
	ExitCode int
	// Output is whatever the command wrote to stdout before failing.
	Output string
	// Detail holds the (truncated) stderr output.
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	name := "command"
	if len(f.Argv) > 0 {
		name = f.Argv[0]
	}
	switch f.Kind {
	case NonZeroExit:
		msg := fmt.Sprintf("%s exited with code %d", name, f.ExitCode)
		if d := strings.TrimSpace(f.Detail); d != "" {
			msg += ": " + firstLine(d)
		}
		return msg
	case Timeout:
		return fmt.Sprintf("%s timed out: %v", name, f.Err)
	case Canceled:
		return fmt.Sprintf("%s cancelled: %v", name, f.Err)
	default:
		return fmt.Sprintf("failed to run %s: %v", name, f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err is a *Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == kind
}

const (
	defaultGracePeriod = 5 * time.Second
	maxDetailLen       = 10000
)

// Local runs commands on this host.
type Local struct {
	// Env, when set, replaces the process environment.
	Env []string
	Dir string
	// GracePeriod is how long a timed-out command gets between SIGTERM and
	// SIGKILL. Defaults to five seconds.
	GracePeriod time.Duration
}

func (l *Local) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", &Failure{Kind: LaunchError, Argv: argv, Err: ErrEmptyCommand}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Env = l.Env
	cmd.Dir = l.Dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = l.GracePeriod
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultGracePeriod
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		kind := Timeout
		if errors.Is(ctxErr, context.Canceled) {
			kind = Canceled
		}
		return stdout.String(), &Failure{
			Kind:   kind,
			Argv:   argv,
			Output: stdout.String(),
			Detail: Truncate(stderr.String(), maxDetailLen),
			Err:    ctxErr,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), &Failure{
			Kind:     NonZeroExit,
			Argv:     argv,
			ExitCode: exitErr.ExitCode(),
			Output:   stdout.String(),
			Detail:   Truncate(stderr.String(), maxDetailLen),
			Err:      err,
		}
	}

	return "", &Failure{Kind: LaunchError, Argv: argv, Err: err}
}

// Truncate shortens s to maxLen bytes, marking the cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
