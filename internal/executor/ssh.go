package executor

import (
	"context"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
)

// SSH runs commands on a remote host by wrapping them in an ssh invocation
// executed through Exec.
type SSH struct {
	Host    string
	User    string
	Port    int
	Options []string
	// Exec runs the ssh client itself. Defaults to a Local executor.
	Exec Executor
}

// ForHost returns local when host is empty and an SSH executor otherwise.
func ForHost(local Executor, host, user string, port int) Executor {
	if host == "" {
		return local
	}
	return &SSH{Host: host, User: user, Port: port, Exec: local}
}

func (s *SSH) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	if len(argv) == 0 {
		return "", &Failure{Kind: LaunchError, Argv: argv, Err: ErrEmptyCommand}
	}
	exec := s.Exec
	if exec == nil {
		exec = &Local{}
	}
	return exec.Run(ctx, s.Argv(argv), timeout)
}

// Argv returns the ssh command line that runs argv on the remote host.
func (s *SSH) Argv(argv []string) []string {
	cmd := []string{"ssh", "-o", "BatchMode=yes"}
	if s.Port > 0 {
		cmd = append(cmd, "-p", strconv.Itoa(s.Port))
	}
	if s.User != "" {
		cmd = append(cmd, "-l", s.User)
	}
	for _, opt := range s.Options {
		cmd = append(cmd, "-o", opt)
	}
	return append(cmd, s.Host, "--", shellquote.Join(argv...))
}
