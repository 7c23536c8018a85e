// Package backend is the client of the back-office REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	pathLogin          = "/login"
	pathProducts       = "/products/getProducts"
	pathCustomers      = "/customers/getCustomers"
	pathCreateCustomer = "/customers/createCustomers"
	pathCreateSale     = "/sales/createSales"
	pathSales          = "/sales/getSales"
)

// ErrUnauthorized is returned when the back office rejects the token. The
// stored session is cleared before it is returned.
var ErrUnauthorized = errors.New("back office rejected credentials")

// ErrUnavailable matches transport failures: the back office could not be
// reached or did not answer in time.
var ErrUnavailable = errors.New("back office unavailable")

// UnavailableError wraps a transport failure of a back-office call.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// APIError is a non-2xx or unsuccessful back-office response. Message is the
// text the back office sent, shown to the operator as is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("back office returned %d: %s", e.StatusCode, e.Message)
}

// TokenSource supplies bearer tokens and forgets them on rejection.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	Transport      http.RoundTripper
	Tokens         TokenSource
	Location       *time.Location
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the back office. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	loc    *time.Location
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{
		base: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport, otelOpts...),
			Timeout:   timeout,
		},
		tokens: opts.Tokens,
		loc:    loc,
	}, nil
}

// WithTokens returns a copy of c that authenticates with t.
func (c *Client) WithTokens(t TokenSource) *Client {
	cc := *c
	cc.tokens = t
	return &cc
}

// Ping checks that the back office answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{Op: "ping", Err: err}
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// envelope is the response wrapper of every back-office endpoint.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// do sends a request and returns the decoded envelope with the raw body.
// When auth is set the bearer token is attached and a 401 clears the
// session.
func (c *Client) do(ctx context.Context, method, path string, body any, auth bool) (*envelope, []byte, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, errors.Wrap(err, "encode body")
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "token")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &UnavailableError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read body")
	}

	if resp.StatusCode == http.StatusUnauthorized && auth {
		if c.tokens != nil {
			if err := c.tokens.Clear(ctx); err != nil {
				return nil, nil, errors.Wrap(err, "clear session")
			}
		}
		return nil, nil, errors.Wrapf(ErrUnauthorized, "%s %s", method, path)
	}

	env := new(envelope)
	decodeErr := json.Unmarshal(raw, env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(env, decodeErr, resp.StatusCode)}
	}
	if decodeErr != nil {
		return nil, nil, errors.Wrapf(decodeErr, "decode %s %s", method, path)
	}
	if env.Success != nil && !*env.Success {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(env, nil, resp.StatusCode)}
	}
	return env, raw, nil
}

func errorMessage(env *envelope, decodeErr error, status int) string {
	if decodeErr == nil {
		if env.Message != "" {
			return env.Message
		}
		var msg string
		if json.Unmarshal(env.Error, &msg) == nil && msg != "" {
			return msg
		}
	}
	return http.StatusText(status)
}

func isNull(data json.RawMessage) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// decodeList decodes either a bare array or a paginated {"data": [...]}
// object.
func decodeList[T any](data json.RawMessage) ([]T, error) {
	if isNull(data) {
		return nil, nil
	}
	if d := bytes.TrimSpace(data); d[0] == '[' {
		var out []T
		if err := json.Unmarshal(d, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var page struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}
