// Package probetest provides fakes for testing checks and the runner.
package probetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
)

// Check is a probe.Check backed by a function.
type Check struct {
	CheckName string
	Fn        func(ctx context.Context) (probe.Result, error)
}

func (c *Check) Name() string        { return c.CheckName }
func (c *Check) Description() string { return "test check " + c.CheckName }

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	return c.Fn(ctx)
}

// Returning builds a check that always returns the given severity and message.
func Returning(name string, severity probe.Severity, message string) *Check {
	return &Check{
		CheckName: name,
		Fn: func(ctx context.Context) (probe.Result, error) {
			return probe.NewResult(name, severity, "%s", message), nil
		},
	}
}

// Panicking builds a check that panics with value.
func Panicking(name string, value any) *Check {
	return &Check{
		CheckName: name,
		Fn: func(ctx context.Context) (probe.Result, error) {
			panic(value)
		},
	}
}

// Erroring builds a check that returns err.
func Erroring(name string, err error) *Check {
	return &Check{
		CheckName: name,
		Fn: func(ctx context.Context) (probe.Result, error) {
			return probe.Result{}, err
		},
	}
}

// Hanging builds a check that blocks until release is closed, ignoring its
// context.
func Hanging(name string, release <-chan struct{}) *Check {
	return &Check{
		CheckName: name,
		Fn: func(ctx context.Context) (probe.Result, error) {
			<-release
			return probe.NewResult(name, probe.SeverityOK, "released"), nil
		},
	}
}

// Reply is a canned executor response.
type Reply struct {
	Output string
	Err    error
}

// Executor answers commands from a table keyed by the space-joined argv.
type Executor struct {
	Replies map[string]Reply

	mu    sync.Mutex
	calls [][]string
}

func (e *Executor) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, argv)
	e.mu.Unlock()

	reply, ok := e.Replies[strings.Join(argv, " ")]
	if !ok {
		return "", &executor.Failure{Kind: executor.LaunchError, Argv: argv, Err: fmt.Errorf("no reply for %q", argv)}
	}
	return reply.Output, reply.Err
}

// Calls returns every argv passed to Run.
func (e *Executor) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

// ExitFailure builds the error a command exiting with code would produce.
func ExitFailure(argv string, code int, output, stderr string) error {
	return &executor.Failure{
		Kind:     executor.NonZeroExit,
		Argv:     strings.Fields(argv),
		ExitCode: code,
		Output:   output,
		Detail:   stderr,
		Err:      fmt.Errorf("exit status %d", code),
	}
}

// Fetcher answers FetchJSON from a table keyed by URL.
type Fetcher struct {
	Docs   map[string]any
	Errors map[string]error
}

func (f *Fetcher) FetchJSON(ctx context.Context, url string, timeout time.Duration) (any, error) {
	if err, ok := f.Errors[url]; ok {
		return nil, err
	}
	if doc, ok := f.Docs[url]; ok {
		return doc, nil
	}
	return nil, &fetcher.Failure{Kind: fetcher.HTTPStatus, URL: url, StatusCode: 404}
}

// Clock returns a fixed time source.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
