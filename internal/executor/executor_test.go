package executor

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short string",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "exact length",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "truncated",
			input:    "hello world",
			maxLen:   5,
			expected: "hello... (truncated)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLocalRunSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on Windows")
	}

	out, err := (&Local{}).Run(context.Background(), []string{"/bin/sh", "-c", "echo hello"}, time.Second*5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("expected %q, got %q", "hello\n", out)
	}
}

func TestLocalRunNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on Windows")
	}

	out, err := (&Local{}).Run(context.Background(), []string{"/bin/sh", "-c", "echo partial; echo broken >&2; exit 3"}, time.Second*5)
	if !IsKind(err, NonZeroExit) {
		t.Fatalf("expected non-zero exit failure, got %v", err)
	}
	f, _ := AsFailure(err)
	if f.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", f.ExitCode)
	}
	if out != "partial\n" || f.Output != "partial\n" {
		t.Errorf("expected partial output, got %q / %q", out, f.Output)
	}
	if !strings.Contains(f.Error(), "broken") {
		t.Errorf("expected stderr in error, got %q", f.Error())
	}
}

func TestLocalRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on Windows")
	}

	start := time.Now()
	_, err := (&Local{GracePeriod: 100 * time.Millisecond}).Run(context.Background(), []string{"sleep", "10"}, 100*time.Millisecond)
	if !IsKind(err, Timeout) {
		t.Fatalf("expected timeout failure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took too long: %s", time.Since(start))
	}
}

func TestLocalRunCanceled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on Windows")
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := (&Local{GracePeriod: 100 * time.Millisecond}).Run(ctx, []string{"sleep", "10"}, 10*time.Second)
	if !IsKind(err, Canceled) {
		t.Fatalf("expected canceled failure, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "sleep cancelled") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestLocalRunLaunchError(t *testing.T) {
	_, err := (&Local{}).Run(context.Background(), []string{"/nonexistent/binary"}, time.Second)
	if !IsKind(err, LaunchError) {
		t.Fatalf("expected launch error, got %v", err)
	}

	_, err = (&Local{}).Run(context.Background(), nil, time.Second)
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

type recordingExecutor struct {
	argv []string
}

func (r *recordingExecutor) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	r.argv = argv
	return "ok", nil
}

func TestSSHArgv(t *testing.T) {
	rec := &recordingExecutor{}
	exec := ForHost(rec, "nn1.example.com", "hdfs", 2222)

	out, err := exec.Run(context.Background(), []string{"hdfs", "dfsadmin", "-report"}, time.Second)
	if err != nil || out != "ok" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}

	expected := []string{"ssh", "-o", "BatchMode=yes", "-p", "2222", "-l", "hdfs", "nn1.example.com", "--", "hdfs dfsadmin -report"}
	if strings.Join(rec.argv, "|") != strings.Join(expected, "|") {
		t.Errorf("expected %q, got %q", expected, rec.argv)
	}
}

func TestForHostLocal(t *testing.T) {
	local := &Local{}
	if ForHost(local, "", "", 0) != Executor(local) {
		t.Error("expected local executor when host is empty")
	}
}

func TestSSHArgvQuoting(t *testing.T) {
	s := &SSH{Host: "db1"}
	tests := []struct {
		argv     []string
		expected string
	}{
		{[]string{"mount"}, "mount"},
		{[]string{"echo", ""}, "echo ''"},
		{[]string{"/bin/sh", "-c", "ps -ef | wc -l"}, "/bin/sh -c 'ps -ef | wc -l'"},
		{[]string{"echo", "it's"}, `echo it\'s`},
		{[]string{"ps", "-o", "uid,pid"}, "ps -o uid,pid"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			argv := s.Argv(tt.argv)
			if got := argv[len(argv)-1]; got != tt.expected {
				t.Errorf("remote command = %q, want %q", got, tt.expected)
			}
			if argv[len(argv)-2] != "--" || argv[len(argv)-3] != "db1" {
				t.Errorf("unexpected ssh argv %q", argv)
			}
		})
	}
}
