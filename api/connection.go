package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	schemeHttps = "https"

	defaultRequestsPerSecond = 5
	defaultBurst             = 5
	defaultBreakerTimeout    = 30 * time.Second
	defaultBreakerFailures   = 5
	userAgent                = "Mozilla/5.0"
)

type Connection interface {
	Request(ctx context.Context, method string, endpoint *url.URL, body any) (*http.Response, error)
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Host string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Host, e.Code, e.Body)
}

type ClientHost struct {
	client  *http.Client
	scheme  string
	host    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

type Client struct {
	Connection Connection
	ApiKey     string
}

type Option func(*ClientHost)

// WithScheme overrides https, used to point clients at plain http test servers.
func WithScheme(scheme string) Option {
	return func(ch *ClientHost) { ch.scheme = scheme }
}

func WithRateLimit(rps float64, burst int) Option {
	return func(ch *ClientHost) { ch.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithBreaker trips the circuit after failures consecutive upstream errors and
// keeps it open for timeout.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(ch *ClientHost) { ch.breaker = newBreaker(ch.host, failures, timeout) }
}

// Request sends the call through the rate limiter and circuit breaker. The
// endpoint only needs a path and query, scheme and host come from the client.
// Any non-2xx answer is returned as a *StatusError with the body consumed.
func (conn *ClientHost) Request(ctx context.Context, method string, endpoint *url.URL, body any) (*http.Response, error) {
	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host
	targetUrl := endpoint.String()

	if err := conn.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter on %s: %w", conn.host, err)
	}

	res, err := conn.breaker.Execute(func() (interface{}, error) {
		req, err := newRequest(ctx, method, targetUrl, body)
		if err != nil {
			return nil, err
		}

		response, err := conn.client.Do(req)
		if err != nil {
			return nil, err
		}

		if response.StatusCode < 200 || response.StatusCode > 299 {
			defer response.Body.Close()
			raw, _ := io.ReadAll(io.LimitReader(response.Body, 512))
			return nil, &StatusError{Host: conn.host, Code: response.StatusCode, Body: string(raw)}
		}

		return response, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint.Path, err)
	}

	return res.(*http.Response), nil
}

func newRequest(ctx context.Context, method, targetUrl string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetUrl, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func newBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// client errors are the caller's fault, not the upstream's
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			se, ok := err.(*StatusError)
			return ok && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
		},
	})
}

func ClientFactory(host string, apiKey string, timeout time.Duration, opts ...Option) *Client {
	client := &http.Client{
		Timeout: timeout,
	}

	clientHost := &ClientHost{
		client:  client,
		scheme:  schemeHttps,
		host:    host,
		limiter: rate.NewLimiter(defaultRequestsPerSecond, defaultBurst),
		breaker: newBreaker(host, defaultBreakerFailures, defaultBreakerTimeout),
	}

	for _, opt := range opts {
		opt(clientHost)
	}

	return &Client{
		Connection: clientHost,
		ApiKey:     apiKey,
	}
}
