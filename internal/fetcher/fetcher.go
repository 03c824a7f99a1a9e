// Package fetcher retrieves status documents over HTTP for API-backed checks.
package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher retrieves and decodes a JSON document. The decoded value is built
// from map[string]any, []any, string, float64, bool and nil.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, timeout time.Duration) (any, error)
}

// Getter performs a plain GET and returns the response whatever its status.
type Getter interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// Kind classifies a fetch failure.
type Kind int

const (
	Network Kind = iota + 1
	HTTPStatus
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network error"
	case HTTPStatus:
		return "http status"
	case Malformed:
		return "malformed response"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Failure describes why a document could not be fetched.
type Failure struct {
	Kind       Kind
	URL        string
	StatusCode int
	Detail     string
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case HTTPStatus:
		return fmt.Sprintf("request failed with status %d", f.StatusCode)
	case Malformed:
		return fmt.Sprintf("invalid JSON response: %v", f.Err)
	default:
		return fmt.Sprintf("request failed: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsKind reports whether err is a *Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
	defaultUserAgent    = "healthmon"
)

// Options configures an HTTP fetcher.
type Options struct {
	// Timeout applies when a call passes a zero timeout.
	Timeout      time.Duration
	UserAgent    string
	Headers      map[string]string
	Insecure     bool
	MaxBodyBytes int64
}

// HTTP implements Fetcher and Getter with net/http.
type HTTP struct {
	client *http.Client
	opts   Options
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(opts Options) *HTTP {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTP{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Fetch issues a GET request. Only transport errors are failures; any HTTP
// status is returned to the caller.
func (h *HTTP) Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = h.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Failure{Kind: Network, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	for k, v := range h.opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Failure{Kind: Network, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		return nil, &Failure{Kind: Network, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}

// FetchJSON fetches url and decodes the body as JSON. Non-2xx responses are
// HTTPStatus failures.
func (h *HTTP) FetchJSON(ctx context.Context, url string, timeout time.Duration) (any, error) {
	resp, err := h.Fetch(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{
			Kind:       HTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Detail:     snippet(resp.Body),
		}
	}

	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, &Failure{Kind: Malformed, URL: url, StatusCode: resp.StatusCode, Detail: snippet(resp.Body), Err: err}
	}
	return doc, nil
}

// NormalizeURL prefixes http:// when raw has no scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
