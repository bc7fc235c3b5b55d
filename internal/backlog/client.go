// Package backlog is a read-only client for the Backlog REST API v2.
package backlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a single HTTP round trip, body included.
	DefaultTimeout = 60 * time.Second

	// DefaultRetryAfter is used when a 429 response has no usable Retry-After.
	DefaultRetryAfter = 60 * time.Second
)

// ErrTimeout is wrapped by errors returned when a request exceeds the
// client timeout. Timed out requests are not retried.
var ErrTimeout = errors.New("request timed out")

// Payload is a decoded response body. Exactly one of JSON and Binary is set,
// chosen by the response content type.
type Payload struct {
	ContentType string
	JSON        json.RawMessage
	Binary      []byte
}

// IsJSON reports whether the response was a structured JSON document.
func (p *Payload) IsJSON() bool {
	return p.JSON != nil
}

// Doer performs one logical API request, retrying on throttling.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body []byte) (*Payload, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client talks to one Backlog space. It is safe for concurrent use; a 429
// seen by any caller suspends every caller until the server's window ends.
type Client struct {
	domain     string
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	sleep      SleepFunc
	now        func() time.Time

	mu           sync.Mutex
	blockedUntil time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API root, normally https://<domain>/api/v2.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the logger used for request tracing and throttle warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithSleep replaces the function used to wait out throttling windows.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a client for the given space domain, e.g. "example.backlog.com".
func New(domain, apiKey string, opts ...Option) *Client {
	c := &Client{
		domain:     domain,
		baseURL:    "https://" + domain + "/api/v2",
		apiKey:     apiKey,
		userAgent:  "backlog-backup",
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Domain returns the space domain the client was created for.
func (c *Client) Domain() string {
	return c.domain
}

// Do sends a request and returns its decoded payload. The API key is always
// added to the query. A 429 response suspends the client for the duration in
// Retry-After and the request is sent again, with no limit on attempts.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte) (*Payload, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("apiKey", c.apiKey)
	target := c.baseURL + path + "?" + q.Encode()

	for {
		if wait := c.waitTime(); wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		start := c.now()
		status, header, data, err := c.roundTrip(ctx, method, target, body)
		if err != nil {
			if isTimeout(ctx, err) {
				return nil, fmt.Errorf("%s %s: %w", method, path, ErrTimeout)
			}
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		c.logger.Debug("api request",
			"method", method,
			"path", path,
			"status", status,
			"bytes", len(data),
			"duration", c.now().Sub(start).Round(time.Millisecond),
		)

		if status == http.StatusTooManyRequests {
			d := parseRetryAfter(header.Get("Retry-After"), c.now())
			c.block(d)
			c.logger.Warn("rate limited, retrying", "path", path, "retry_after", d)
			continue
		}

		if status < 200 || status > 299 {
			return nil, newAPIError(status, data)
		}

		ct := header.Get("Content-Type")
		if isJSONContent(ct) {
			return &Payload{ContentType: ct, JSON: json.RawMessage(data)}, nil
		}
		if data == nil {
			data = []byte{}
		}
		return &Payload{ContentType: ct, Binary: data}, nil
	}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte) (int, http.Header, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, stripQuery(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading response body: %w", stripQuery(err))
	}
	return resp.StatusCode, resp.Header, data, nil
}

// waitTime returns how long callers must wait before the next request.
func (c *Client) waitTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockedUntil.Sub(c.now())
}

// block extends the shared suspension window to at least now+d.
func (c *Client) block(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(d)
	if until.After(c.blockedUntil) {
		c.blockedUntil = until
	}
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

func isJSONContent(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(ct), "application/json")
	}
	return mt == "application/json"
}

// isTimeout reports whether err is the per-request deadline firing rather
// than the caller's context being cancelled.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// stripQuery removes the request URL, which carries the API key, from
// transport errors.
func stripQuery(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getJSON issues a GET and decodes a JSON payload into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	p, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if !p.IsJSON() {
		return fmt.Errorf("GET %s: expected JSON content, got %q", path, p.ContentType)
	}
	if err := json.Unmarshal(p.JSON, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
