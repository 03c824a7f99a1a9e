// Package dns checks name resolution, either by querying a DNS server
// directly or by running dig on a remote host over ssh.
package dns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/sethvargo/go-retry"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "dns"

const fallbackServer = "8.8.8.8:53"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check DNS resolution and response time",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"query": {
					Type:        "string",
					Description: "Name to resolve",
				},
			},
			Optional: probe.WithRemoteArguments(map[string]probe.ArgumentSpec{
				"record_type": {
					Type:        "string",
					Description: "Record type",
					Default:     "A",
					Enum:        []string{"A", "AAAA", "CNAME", "MX", "NS", "TXT", "PTR", "SOA", "SRV"},
				},
				"server": {
					Type:        "string",
					Description: "DNS server (host[:port]); defaults to the system resolver",
				},
				"expected": {
					Type:        "string",
					Description: "Address or text that must appear in an answer",
				},
				"warning": {
					Type:        "duration",
					Description: "Query time above which to warn",
				},
				"critical": {
					Type:        "duration",
					Description: "Query time above which the check is critical",
				},
				"retries": {
					Type:        "integer",
					Description: "Attempts before giving up",
					Default:     1,
				},
				"retry_delay": {
					Type:        "duration",
					Description: "Pause between attempts",
					Default:     "1s",
				},
				"tcp": {
					Type:        "boolean",
					Description: "Query over TCP",
					Default:     false,
				},
				"timeout": {
					Type:        "duration",
					Description: "Timeout per attempt",
					Default:     "5s",
				},
			}),
		},
	}
}

// Config holds the check arguments.
type Config struct {
	probe.Remote `mapstructure:",squash"`
	Query        string        `mapstructure:"query"`
	RecordType   string        `mapstructure:"record_type"`
	Server       string        `mapstructure:"server"`
	Expected     string        `mapstructure:"expected"`
	Warning      time.Duration `mapstructure:"warning"`
	Critical     time.Duration `mapstructure:"critical"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	TCP          bool          `mapstructure:"tcp"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the argument defaults.
func DefaultConfig() Config {
	return Config{
		RecordType: "A",
		Retries:    1,
		RetryDelay: time.Second,
		Timeout:    5 * time.Second,
	}
}

// resolver answers one query attempt.
type resolver interface {
	resolve(ctx context.Context) ([]string, error)
}

// Check is the DNS check.
type Check struct {
	name     string
	cfg      Config
	resolver resolver
}

// New creates a DNS check. exec is only used when cfg names an ssh host.
func New(name string, cfg Config, exec executor.Executor) (*Check, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("query argument is required")
	}
	cfg.RecordType = strings.ToUpper(cfg.RecordType)
	if cfg.RecordType == "" {
		cfg.RecordType = "A"
	}
	qtype, ok := mdns.StringToType[cfg.RecordType]
	if !ok {
		return nil, fmt.Errorf("unsupported record type %q", cfg.RecordType)
	}
	if cfg.Critical > 0 && cfg.Warning > cfg.Critical {
		return nil, fmt.Errorf("warning %s is above critical %s", cfg.Warning, cfg.Critical)
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if name == "" {
		name = Name
	}

	c := &Check{name: name, cfg: cfg}
	if cfg.SSHHost != "" {
		c.resolver = &digResolver{cfg: cfg, exec: cfg.Remote.Executor(exec)}
	} else {
		server := cfg.Server
		if server == "" {
			server = systemServer()
		}
		c.resolver = &directResolver{cfg: cfg, qtype: qtype, server: withPort(server)}
	}
	return c, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	cfg := DefaultConfig()
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Executor)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return fmt.Sprintf("DNS %s record for %s", c.cfg.RecordType, c.cfg.Query)
}

func (c *Check) backoff() retry.Backoff {
	constant := retry.BackoffFunc(func() (time.Duration, bool) {
		return c.cfg.RetryDelay, false
	})
	return retry.WithMaxRetries(uint64(c.cfg.Retries-1), constant)
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	var (
		answers  []string
		duration time.Duration
	)
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		start := time.Now()
		a, err := c.resolver.resolve(ctx)
		duration = time.Since(start)
		if err != nil {
			return retry.RetryableError(err)
		}
		answers = a
		return nil
	})
	if err == nil {
		return c.evaluate(answers, duration), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return probe.Result{}, err
	}

	return probe.NewResult(c.name, probe.SeverityCritical, "DNS query failed after %d attempts", c.cfg.Retries).
		WithMetrics(probe.NewMetrics("duration_ms", 0, "answers", 0, "response_matches", 0)).
		WithDetail(fmt.Sprintf("Last error: %v", err)), nil
}

func (c *Check) evaluate(answers []string, duration time.Duration) probe.Result {
	matches := c.cfg.Expected == "" || containsAnswer(answers, c.cfg.Expected)
	metrics := probe.NewMetrics(
		"duration_ms", float64(duration.Microseconds())/1000,
		"answers", len(answers),
		"response_matches", matches,
	)
	detail := "Response: " + strings.Join(answers, ", ")

	if len(answers) == 0 {
		return probe.NewResult(c.name, probe.SeverityCritical, "No %s records for %s", c.cfg.RecordType, c.cfg.Query).
			WithMetrics(metrics)
	}
	if !matches {
		return probe.NewResult(c.name, probe.SeverityCritical, "Expected address '%s' not found", c.cfg.Expected).
			WithMetrics(metrics).WithDetail(detail)
	}

	critical := c.cfg.Critical.Seconds()
	if c.cfg.Critical == 0 {
		critical = math.Inf(1)
	}
	warning := c.cfg.Warning.Seconds()
	if c.cfg.Warning == 0 {
		warning = critical
	}

	rounded := duration.Round(time.Millisecond)
	var result probe.Result
	switch threshold.Above(duration.Seconds(), warning, critical) {
	case probe.SeverityCritical:
		result = probe.NewResult(c.name, probe.SeverityCritical, "Query took %s (critical: %s)", rounded, c.cfg.Critical)
	case probe.SeverityWarning:
		result = probe.NewResult(c.name, probe.SeverityWarning, "Query took %s (warning threshold: %s)", rounded, c.cfg.Warning)
	default:
		result = probe.NewResult(c.name, probe.SeverityOK, "DNS response received in %s", rounded)
	}
	return result.WithMetrics(metrics).WithDetail(detail)
}

func containsAnswer(answers []string, expected string) bool {
	for _, a := range answers {
		if strings.Contains(a, expected) {
			return true
		}
	}
	return false
}

type directResolver struct {
	cfg    Config
	qtype  uint16
	server string
}

func (r *directResolver) resolve(ctx context.Context) ([]string, error) {
	client := &mdns.Client{Timeout: r.cfg.Timeout}
	if r.cfg.TCP {
		client.Net = "tcp"
	}
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(r.cfg.Query), r.qtype)
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.server, err)
	}
	if resp.Rcode != mdns.RcodeSuccess && resp.Rcode != mdns.RcodeNameError {
		return nil, fmt.Errorf("query %s: server returned %s", r.server, mdns.RcodeToString[resp.Rcode])
	}

	answers := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		answers = append(answers, answerText(rr))
	}
	return answers, nil
}

// answerText renders the data part of a record, as dig +short does.
func answerText(rr mdns.RR) string {
	switch v := rr.(type) {
	case *mdns.A:
		return v.A.String()
	case *mdns.AAAA:
		return v.AAAA.String()
	case *mdns.CNAME:
		return v.Target
	case *mdns.MX:
		return strconv.Itoa(int(v.Preference)) + " " + v.Mx
	case *mdns.NS:
		return v.Ns
	case *mdns.PTR:
		return v.Ptr
	case *mdns.TXT:
		return strings.Join(v.Txt, "")
	case *mdns.SOA:
		return v.Ns + " " + v.Mbox
	case *mdns.SRV:
		return fmt.Sprintf("%d %d %d %s", v.Priority, v.Weight, v.Port, v.Target)
	}
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}

type digResolver struct {
	cfg  Config
	exec executor.Executor
}

// Argv returns the dig command run on the remote host.
func (r *digResolver) Argv() []string {
	argv := []string{"dig"}
	if r.cfg.Server != "" {
		host, port, err := net.SplitHostPort(r.cfg.Server)
		if err != nil {
			host, port = r.cfg.Server, ""
		}
		argv = append(argv, "@"+host)
		if port != "" {
			argv = append(argv, "-p", port)
		}
	}
	if r.cfg.TCP {
		argv = append(argv, "+tcp")
	}
	return append(argv, "-t", r.cfg.RecordType, "+short", r.cfg.Query)
}

func (r *digResolver) resolve(ctx context.Context) ([]string, error) {
	out, err := r.exec.Run(ctx, r.Argv(), r.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	var answers []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		answers = append(answers, strings.Trim(line, `"`))
	}
	return answers, nil
}

var errNoResolver = errors.New("no nameserver in /etc/resolv.conf")

func systemServer() string {
	server, err := resolvConfServer("/etc/resolv.conf")
	if err != nil {
		return fallbackServer
	}
	return server
}

func resolvConfServer(path string) (string, error) {
	conf, err := mdns.ClientConfigFromFile(path)
	if err != nil {
		return "", err
	}
	if len(conf.Servers) == 0 {
		return "", errNoResolver
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}
