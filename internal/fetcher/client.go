package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default client settings.
const (
	// DefaultTimeout bounds one attempt, body included.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxConnections caps open connections to one host.
	DefaultMaxConnections = 100

	// DefaultRetryAttempts is the number of attempts per fetch.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the delay before the second attempt. It doubles
	// for every further attempt.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultMaxBodySize caps a decoded response body.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// idleConnTimeout is how long a pooled keep-alive connection may idle.
	idleConnTimeout = 5 * time.Second

	// idleConnDivisor sizes the keep-alive pool relative to the connection cap.
	idleConnDivisor = 5
)

// OutcomeKind classifies a fetch result.
type OutcomeKind int

const (
	// OutcomeSuccess means a response with status < 400 was read.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeRecoverable means the fetch failed in a way that may succeed
	// later: retries were exhausted or the context was cancelled.
	OutcomeRecoverable

	// OutcomeFatal means the server answered with an error status or the
	// response can never be read. Retrying will not help.
	OutcomeFatal
)

// String returns the outcome name used in logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Response is a fetched and decoded HTTP response.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the decoded body.
	Body []byte
}

// Text returns the body decoded as UTF-8.
func (r *Response) Text() string {
	return decodeUTF8(r.Body)
}

// Outcome is the result of Fetch.
//
// Design decision: We return an Outcome rather than (Response, error)
// because callers branch on three cases, not two. A fatal result (an error
// status, an oversized body) retires the target while a recoverable one puts
// it back, and both carry the error for the log.
type Outcome struct {
	// Kind classifies the result.
	Kind OutcomeKind

	// Response is set for OutcomeSuccess.
	Response *Response

	// Err describes the failure for the other kinds.
	Err error

	// Attempts is the number of requests made.
	Attempts int
}

// StatusCode returns the HTTP status of a successful or fatal-status
// outcome and 0 otherwise.
func (o *Outcome) StatusCode() int {
	if o.Response != nil {
		return o.Response.StatusCode
	}
	var statusErr *StatusError
	if errors.As(o.Err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Client downloads URLs with retry and user agent rotation.
// It is safe for concurrent use.
type Client struct {
	// httpClient is shared by all requests and never mutated after New.
	httpClient *http.Client

	timeout        time.Duration
	maxConnections int
	retryAttempts  int
	retryBackoff   time.Duration
	maxBodySize    int64

	// headers are added to every request after the fixed headers.
	headers http.Header

	cookie     string
	userAgents []string

	// limiter paces requests when a rate is configured.
	limiter *rate.Limiter

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxConnections caps open connections per host. The keep-alive pool
// holds a fifth of that.
func WithMaxConnections(n int) Option {
	return func(c *Client) {
		c.maxConnections = n
	}
}

// WithRetryAttempts sets the number of attempts per fetch.
func WithRetryAttempts(n int) Option {
	return func(c *Client) {
		c.retryAttempts = n
	}
}

// WithRetryBackoff sets the initial retry delay. Zero retries immediately.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithMaxBodySize caps decoded response bodies.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithCookie sets the Cookie header of every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithUserAgents replaces the user agent rotation list.
func WithUserAgents(agents []string) Option {
	return func(c *Client) {
		c.userAgents = append([]string(nil), agents...)
	}
}

// WithRateLimit limits requests to perSecond across the client.
// Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithHTTPClient uses client instead of building one. Timeout and
// connection options are then ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		maxConnections: DefaultMaxConnections,
		retryAttempts:  DefaultRetryAttempts,
		retryBackoff:   DefaultRetryBackoff,
		maxBodySize:    DefaultMaxBodySize,
		headers:        make(http.Header),
		userAgents:     DefaultUserAgents,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retryAttempts < 1 {
		c.retryAttempts = 1
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = DefaultMaxBodySize
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: newTransport(c.maxConnections),
		}
	}

	return c
}

func newTransport(maxConnections int) *http.Transport {
	if maxConnections < 1 {
		maxConnections = DefaultMaxConnections
	}
	idle := max(1, maxConnections/idleConnDivisor)

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxConnsPerHost:       maxConnections,
		MaxIdleConns:          idle,
		MaxIdleConnsPerHost:   idle,
		IdleConnTimeout:       idleConnTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		// Bodies are decoded by readBody.
		DisableCompression: true,
	}
}

// CloseIdleConnections closes pooled keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Fetch downloads url. Transient failures are retried up to the attempt
// limit; error statuses are returned at once as OutcomeFatal.
func (c *Client) Fetch(ctx context.Context, url string) *Outcome {
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoff(attempt-1)); err != nil {
				return &Outcome{Kind: OutcomeRecoverable, Err: err, Attempts: attempt - 1}
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &Outcome{Kind: OutcomeRecoverable, Err: err, Attempts: attempt - 1}
			}
		}

		resp, err := c.do(ctx, url)
		if err == nil {
			return &Outcome{Kind: OutcomeSuccess, Response: resp, Attempts: attempt}
		}

		if permanent(err) {
			c.logger.Debug("fetch failed permanently", "url", url, "attempt", attempt, "error", err)
			return &Outcome{Kind: OutcomeFatal, Err: err, Attempts: attempt}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Outcome{Kind: OutcomeRecoverable, Err: ctxErr, Attempts: attempt}
		}

		c.logger.Debug("fetch attempt failed", "url", url, "attempt", attempt, "error", err)
		lastErr = err
	}

	return &Outcome{
		Kind:     OutcomeRecoverable,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.retryAttempts, lastErr),
		Attempts: c.retryAttempts,
	}
}

// permanent reports whether retrying err cannot succeed.
func permanent(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrCorruptBody) ||
		errors.Is(err, ErrBodyTooLarge) ||
		errors.Is(err, ErrUnsupportedEncoding)
}

// do performs one attempt with a fresh request.
func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	req.Header.Set("User-Agent", randomUserAgent(c.userAgents))
	req.Header.Set("Accept-Encoding", "*")
	req.Header.Set("Connection", "keep-alive")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := readBody(resp, c.maxBodySize)
	if err != nil {
		return nil, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// backoff returns the delay before retry n (1-based).
func (c *Client) backoff(n int) time.Duration {
	if c.retryBackoff <= 0 {
		return 0
	}
	return c.retryBackoff << (n - 1)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
