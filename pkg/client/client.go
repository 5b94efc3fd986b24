// Package client is a fluent, retry-aware HTTP client for a running
// application server. It sets the key headers and decodes the error
// envelope.
//
// Usage:
//
//	c := client.FromConfig(r.Config())
//
//	resp, err := c.Post("/classes/Game").
//	    Body(map[string]any{"score": 10}).
//	    Send(ctx)
//
//	var game map[string]any
//	err = resp.JSON(&game)
//
//	// master-only route
//	_, err = c.Delete("/classes/Game").Master().Send(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/middleware"
)

// defaultTransport is shared by every client unless WithHTTPClient is used.
var defaultTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     30 * time.Second,
}

// Client talks to one server URL with one set of keys.
type Client struct {
	baseURL       string
	appID         string
	javaScriptKey string
	masterKey     string
	http          *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithKeys sets the application id and JavaScript key sent on every request.
func WithKeys(appID, javaScriptKey string) Option {
	return func(c *Client) {
		c.appID = appID
		c.javaScriptKey = javaScriptKey
	}
}

// WithMasterKey sets the key Request.Master sends.
func WithMasterKey(key string) Option {
	return func(c *Client) { c.masterKey = key }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for baseURL, for example http://localhost:30001/1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: defaultTransport},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FromConfig returns a client for the server described by cfg.
func FromConfig(cfg appserver.Config, opts ...Option) *Client {
	base := []Option{WithKeys(cfg.AppID, cfg.JavaScriptKey), WithMasterKey(cfg.MasterKey)}
	return New(cfg.ServerURL, append(base, opts...)...)
}

// BaseURL returns the URL paths are joined to.
func (c *Client) BaseURL() string { return c.baseURL }

// Get starts a GET request.
func (c *Client) Get(path string) *Request { return c.newRequest(http.MethodGet, path) }

// Post starts a POST request.
func (c *Client) Post(path string) *Request { return c.newRequest(http.MethodPost, path) }

// Put starts a PUT request.
func (c *Client) Put(path string) *Request { return c.newRequest(http.MethodPut, path) }

// Delete starts a DELETE request.
func (c *Client) Delete(path string) *Request { return c.newRequest(http.MethodDelete, path) }

// Health calls /health and returns an error unless it answers 200.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.Get("/health").Send(ctx)
	if err != nil {
		return err
	}
	return resp.Throw()
}

func (c *Client) newRequest(method, path string) *Request {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Request{
		c:         c,
		method:    method,
		url:       c.baseURL + path,
		headers:   map[string]string{"Accept": "application/json"},
		timeout:   10 * time.Second,
		attempts:  1,
		retryWait: 100 * time.Millisecond,
	}
}

// ------------------- Request -------------------

// Request is a fluent request builder.
type Request struct {
	c         *Client
	method    string
	url       string
	headers   map[string]string
	body      interface{}
	master    bool
	timeout   time.Duration
	attempts  int
	retryWait time.Duration
}

// Header adds a single header.
func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Body sets the request body. v is marshalled to JSON unless it is a string
// or []byte, which are sent as-is.
func (r *Request) Body(v interface{}) *Request {
	r.body = v
	return r
}

// Master sends the master key instead of the JavaScript key.
func (r *Request) Master() *Request {
	r.master = true
	return r
}

// Timeout sets the per-attempt timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total number of attempts and the initial backoff, which
// doubles each attempt. Transport errors and 503 responses are retried.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.attempts = n
	r.retryWait = wait
	return r
}

// Send executes the request. A non-2xx status is not an error here; use
// Response.Throw for that.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.do(ctx)
		if err == nil && resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}
		if err == nil {
			err = resp.Throw()
			if attempt == r.attempts {
				return resp, nil
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < r.attempts {
			backoff := time.Duration(float64(r.retryWait) * math.Pow(2, float64(attempt-1)))
			logger.Debug("client: request failed, retrying",
				"url", r.url, "attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("client: %s %s: %w", r.method, r.url, ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("client: all %d attempts failed for %s %s: %w", r.attempts, r.method, r.url, lastErr)
}

func (r *Request) do(ctx context.Context) (*Response, error) {
	body, ct, err := r.buildBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	if r.c.appID != "" {
		req.Header.Set(middleware.AppIDHeader, r.c.appID)
	}
	if r.master {
		req.Header.Set(middleware.MasterKeyHeader, r.c.masterKey)
	} else if r.c.javaScriptKey != "" {
		req.Header.Set(middleware.JavaScriptKeyHeader, r.c.javaScriptKey)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

func (r *Request) buildBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), "application/json", nil
	case []byte:
		return bytes.NewReader(v), "application/json", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("client: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// ------------------- Response -------------------

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the body into dest.
func (r *Response) JSON(dest interface{}) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("client: decode JSON: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Raw) }

// Header returns a single response header value.
func (r *Response) Header(key string) string { return r.Headers.Get(key) }

// Throw returns an *APIError unless the status is 2xx.
func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	apiErr := &APIError{Status: r.StatusCode}
	if err := json.Unmarshal(r.Raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(r.Raw))
	}
	return apiErr
}

// APIError is a non-2xx response, decoded from the error envelope when the
// body has one.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("client: status %d: code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("client: status %d: %s", e.Status, e.Message)
}

// IsCode reports whether err is an *APIError with the given envelope code.
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
