// Package remote is the typed REST client for the upstream backoffice backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
	"github.com/containerd/errdefs"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// Client sends JSON requests to the backend, decodes and validates the answers.
// It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimit throttles outgoing requests. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(c *Client) { c.validate = v }
}

// New builds a client rooted at baseURL, e.g. "https://erp.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: 10 * time.Second},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type callOptions struct {
	unwrap     bool
	lenient    bool
	allowEmpty bool
}

// CallOption tunes a single request.
type CallOption func(*callOptions)

// Unwrap decodes responses of the form {"data": T} into T.
func Unwrap() CallOption {
	return func(o *callOptions) { o.unwrap = true }
}

// MaybeUnwrap decodes {"data": T} into T when the body has a "data" field and
// the body itself as T otherwise.
func MaybeUnwrap() CallOption {
	return func(o *callOptions) {
		o.unwrap = true
		o.lenient = true
	}
}

func buildCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Get fetches path with the given query parameters and decodes the body into T.
func Get[T any](ctx context.Context, c *Client, path string, params url.Values, opts ...CallOption) (T, error) {
	var zero T
	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return zero, err
	}
	return decode[T](c, http.MethodGet, path, body, buildCallOptions(opts))
}

// Post sends payload as JSON and decodes the answer into T. An empty answer yields the zero T.
func Post[T any](ctx context.Context, c *Client, path string, payload any, opts ...CallOption) (T, error) {
	return send[T](ctx, c, http.MethodPost, path, payload, opts)
}

// Put sends payload as JSON and decodes the answer into T. An empty answer yields the zero T.
func Put[T any](ctx context.Context, c *Client, path string, payload any, opts ...CallOption) (T, error) {
	return send[T](ctx, c, http.MethodPut, path, payload, opts)
}

// Delete removes the resource at path. Any 2xx answer is a success; the body is ignored.
func Delete(ctx context.Context, c *Client, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

func send[T any](ctx context.Context, c *Client, method, path string, payload any, opts []CallOption) (T, error) {
	var zero T
	raw, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("%s %s: encode body: %w", method, path, err)
	}
	body, err := c.do(ctx, method, path, nil, raw)
	if err != nil {
		return zero, err
	}
	o := buildCallOptions(opts)
	o.allowEmpty = true
	return decode[T](c, method, path, body, o)
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) ([]byte, error) {
	log := logger.WithComponent("remote")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: rate limit: %w", method, path, err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, params), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	log.Debugf("→ %s %s", method, req.URL.RequestURI())
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(method, 0, time.Since(start))
		log.Warnf("✗ %s %s: %v", method, path, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, errdefs.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	metrics.RecordUpstreamRequest(method, resp.StatusCode, elapsed)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w: %w", method, path, errdefs.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(method, path, resp.StatusCode, body)
		log.Warnf("← %s %s %d (%s): %s", method, path, resp.StatusCode, elapsed, httpErr.Message)
		return nil, httpErr
	}

	log.Debugf("← %s %s %d (%s)", method, path, resp.StatusCode, elapsed)
	return body, nil
}

func decode[T any](c *Client, method, path string, body []byte, o callOptions) (T, error) {
	var zero T
	if len(bytes.TrimSpace(body)) == 0 {
		if o.allowEmpty {
			return zero, nil
		}
		return zero, schemaMismatch(method, path, errors.New("empty body"))
	}

	var out T
	unwrapped := false
	if o.unwrap {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		// A lenient unwrap falls through to the plain decode when the body is not an object.
		err := json.Unmarshal(body, &envelope)
		switch {
		case err != nil && !o.lenient:
			return zero, schemaMismatch(method, path, err)
		case err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null":
			if err := json.Unmarshal(envelope.Data, &out); err != nil {
				return zero, schemaMismatch(method, path, err)
			}
			unwrapped = true
		case !o.lenient:
			return zero, schemaMismatch(method, path, errors.New(`missing "data" field`))
		}
	}
	if !unwrapped {
		if err := json.Unmarshal(body, &out); err != nil {
			return zero, schemaMismatch(method, path, err)
		}
	}

	if err := c.validateShape(out); err != nil {
		return zero, schemaMismatch(method, path, err)
	}
	return out, nil
}

// validateShape runs struct validation on v, or on every element when v is a slice.
func (c *Client) validateShape(v any) error {
	if c.validate == nil {
		return nil
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		return c.validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := c.validateShape(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

func schemaMismatch(method, path string, cause error) error {
	metrics.RecordSchemaMismatch()
	logger.WithComponent("remote").Errorf("%s %s: response validation failed: %v", method, path, cause)
	return fmt.Errorf("%s %s: %w: %v", method, path, ErrSchemaMismatch, cause)
}
