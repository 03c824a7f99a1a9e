package probe

import (
	"log/slog"
	"time"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/fetcher"
)

// Env carries the collaborators a check type may need when it is built.
// Zero fields are filled in by DefaultEnv.
type Env struct {
	Executor executor.Executor
	Fetcher  fetcher.Fetcher
	Getter   fetcher.Getter
	Now      func() time.Time
	Logger   *slog.Logger
}

// DefaultEnv returns an Env backed by the local executor and a shared HTTP
// fetcher.
func DefaultEnv() Env {
	return Env{}.WithDefaults()
}

// WithDefaults fills every unset collaborator.
func (e Env) WithDefaults() Env {
	if e.Executor == nil {
		e.Executor = &executor.Local{}
	}
	if e.Fetcher == nil || e.Getter == nil {
		http := fetcher.NewHTTP(fetcher.Options{})
		if e.Fetcher == nil {
			e.Fetcher = http
		}
		if e.Getter == nil {
			e.Getter = http
		}
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return e
}

// Remote selects the host a command-backed check runs its commands on.
// Embed it in a Config with `mapstructure:",squash"`.
type Remote struct {
	SSHHost string `mapstructure:"ssh_host"`
	SSHUser string `mapstructure:"ssh_user"`
	SSHPort int    `mapstructure:"ssh_port"`
}

// Executor wraps local in an ssh executor when a host is configured.
func (r Remote) Executor(local executor.Executor) executor.Executor {
	return executor.ForHost(local, r.SSHHost, r.SSHUser, r.SSHPort)
}

// WithRemoteArguments adds the ssh_* arguments to an optional argument set.
func WithRemoteArguments(optional map[string]ArgumentSpec) map[string]ArgumentSpec {
	optional["ssh_host"] = ArgumentSpec{
		Type:        "string",
		Description: "Run the command on this host over ssh",
	}
	optional["ssh_user"] = ArgumentSpec{
		Type:        "string",
		Description: "ssh login user",
	}
	optional["ssh_port"] = ArgumentSpec{
		Type:        "integer",
		Description: "ssh port",
	}
	return optional
}
