// Package api is the gateway to the StarCourier game service. It validates
// inputs locally, serves repeat reads from a TTL-LRU cache, retries failed
// calls with exponential backoff and normalizes every failure into an
// *apperr.Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/cache"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/retry"
)

// Defaults for a Client built without options.
const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 10 * time.Second
)

// RequestInterceptor runs on every outgoing request before it is sent.
type RequestInterceptor func(req *http.Request)

// ResponseInterceptor runs on every response received, before decoding.
type ResponseInterceptor func(req *http.Request, resp *http.Response, body []byte)

// Client talks to the game service.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	http   *http.Client
	cache  *cache.Cache[string, []byte]
	policy retry.Policy
	group  singleflight.Group

	// gen changes on every cache clear so reads started before a mutation
	// do not repopulate the cache with pre-mutation data.
	gen atomic.Uint64

	reqInterceptors  []RequestInterceptor
	respInterceptors []ResponseInterceptor
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithCache replaces the response cache.
func WithCache(rc *cache.Cache[string, []byte]) Option {
	return func(c *Client) { c.cache = rc }
}

// WithRetry replaces the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRequestInterceptor appends a request interceptor.
func WithRequestInterceptor(fn RequestInterceptor) Option {
	return func(c *Client) { c.reqInterceptors = append(c.reqInterceptors, fn) }
}

// WithResponseInterceptor appends a response interceptor.
func WithResponseInterceptor(fn ResponseInterceptor) Option {
	return func(c *Client) { c.respInterceptors = append(c.respInterceptors, fn) }
}

// WithoutLogging drops the default logging interceptors.
func WithoutLogging() Option {
	return func(c *Client) {
		c.reqInterceptors = nil
		c.respInterceptors = nil
	}
}

// New creates a Client for baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{Timeout: DefaultTimeout},
		cache:            cache.New[string, []byte](cache.DefaultMaxEntries, cache.DefaultTTL),
		policy:           retry.Default(),
		reqInterceptors:  []RequestInterceptor{LogRequest},
		respInterceptors: []ResponseInterceptor{LogResponse},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogRequest is the default request interceptor.
func LogRequest(req *http.Request) {
	log.Printf("api: %s %s", req.Method, req.URL.String())
}

// LogResponse is the default response interceptor.
func LogResponse(req *http.Request, resp *http.Response, body []byte) {
	log.Printf("api: %s %s -> %d (%d bytes)", req.Method, req.URL.Path, resp.StatusCode, len(body))
}

// SetBaseURL changes the service address for subsequent calls.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(u, "/")
	c.mu.Unlock()
	log.Printf("api: base url set to %s", u)
}

// BaseURL returns the current service address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.gen.Add(1)
	c.cache.Clear()
}

// CacheSize returns the number of cached responses, including expired ones
// that have not been touched yet.
func (c *Client) CacheSize() int {
	return c.cache.Len()
}

// CacheStats returns response cache metrics.
func (c *Client) CacheStats() models.CacheStats {
	return c.cache.Stats()
}

func cacheKey(method, path string) string {
	return strings.ToLower(method) + ":" + path
}

// get fetches path and decodes the JSON body into out. Cacheable reads are
// served from the cache when fresh; concurrent identical misses share one
// network call.
func (c *Client) get(ctx context.Context, path string, cacheable bool, out any) error {
	if !cacheable {
		body, err := c.fetch(ctx, http.MethodGet, path, nil, c.policy)
		if err != nil {
			return err
		}
		return c.decode(http.MethodGet, path, body, out)
	}

	key := cacheKey(http.MethodGet, path)
	if body, ok := c.cache.Get(key); ok {
		return c.decode(http.MethodGet, path, body, out)
	}

	// The shared fetch outlives any single caller; each caller waits on
	// its own ctx.
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.gen.Load()
		body, err := c.fetch(context.WithoutCancel(ctx), http.MethodGet, path, nil, c.policy)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.cache.Set(key, body)
		}
		return body, nil
	})
	select {
	case <-ctx.Done():
		return canceled(http.MethodGet, c.BaseURL()+path, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return c.decode(http.MethodGet, path, res.Val.([]byte), out)
	}
}

func canceled(method, target string, err error) *apperr.Error {
	return &apperr.Error{Kind: apperr.KindCanceled, Message: "request canceled", Method: method, URL: target, Err: err}
}

// send issues a request with a JSON body. Mutating calls clear the cache
// before dispatch.
func (c *Client) send(ctx context.Context, method, path string, in, out any, mutating bool) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return &apperr.Error{Kind: apperr.KindUnknown, Message: "encode request", Method: method, URL: path, Err: err}
		}
	}
	if mutating {
		c.ClearCache()
	}

	body, err := c.fetch(ctx, method, path, payload, c.policy)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(method, path, body, out)
}

// fetch performs one logical call under the given retry policy.
func (c *Client) fetch(ctx context.Context, method, path string, payload []byte, p retry.Policy) ([]byte, error) {
	return retry.Do(ctx, p, func(ctx context.Context) ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
}

// roundTrip sends a single request and normalizes the outcome.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	target := c.BaseURL() + path

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindUnknown, Message: "create request", Method: method, URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, fn := range c.reqInterceptors {
		fn(req)
	}

	resp, err := c.http.Do(req)
	if err != nil && ctx.Err() != nil {
		return nil, canceled(method, target, err)
	}
	if err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindNetwork,
			Message: "no response from game service",
			Method:  method,
			URL:     target,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindNetwork,
			Message: "read response",
			Status:  resp.StatusCode,
			Method:  method,
			URL:     target,
			Err:     err,
		}
	}
	for _, fn := range c.respInterceptors {
		fn(req, resp, body)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.Error{
			Kind:    apperr.KindServer,
			Message: serverMessage(resp.StatusCode, body),
			Status:  resp.StatusCode,
			Method:  method,
			URL:     target,
		}
	}
	return body, nil
}

func (c *Client) decode(method, path string, body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apperr.Error{
			Kind:    apperr.KindUnknown,
			Message: "decode response",
			Method:  method,
			URL:     c.BaseURL() + path,
			Err:     err,
		}
	}
	return nil
}

// serverMessage extracts the error text from a failed response: the error
// field, else detail (string or structured), else the HTTP status text.
func serverMessage(status int, body []byte) string {
	var eb models.ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if len(eb.Detail) > 0 && string(eb.Detail) != "null" {
			var s string
			if err := json.Unmarshal(eb.Detail, &s); err == nil {
				if s != "" {
					return s
				}
			} else {
				var buf bytes.Buffer
				if err := json.Compact(&buf, eb.Detail); err == nil {
					return buf.String()
				}
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", status)
}
