package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const responseReadLimit int64 = 1 << 20

// Observer receives per-call timings. *metrics.Fulfillment satisfies it.
type Observer interface {
	ObserveCarrierCall(provider, operation string, err error, duration time.Duration)
}

// Authorizer sets the credential on an outbound request.
type Authorizer func(req *http.Request, cred Credential)

// ErrorDecoder extracts carrier messages from an error body.
type ErrorDecoder func(body []byte) []Message

// BreakerSettings tunes the circuit breaker guarding a provider.
type BreakerSettings struct {
	MaxFailures  uint32
	OpenDuration time.Duration
}

// Transport is the JSON-over-HTTP client shared by the backends. Network
// failures and 5xx responses count against the circuit breaker; 4xx responses
// are returned as *Error without tripping it.
type Transport struct {
	provider    string
	baseURL     string
	httpClient  *http.Client
	authorize   Authorizer
	decodeError ErrorDecoder
	breaker     *gobreaker.CircuitBreaker
	observer    Observer
}

// Option configures optional transport behavior.
type Option func(*Transport)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithBaseURL overrides the provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			t.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithObserver attaches a call-duration observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) {
		t.observer = o
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(settings BreakerSettings) Option {
	return func(t *Transport) {
		t.breaker = newBreaker(t.provider, settings)
	}
}

// WithErrorDecoder sets how carrier messages are read from error bodies.
func WithErrorDecoder(fn ErrorDecoder) Option {
	return func(t *Transport) {
		if fn != nil {
			t.decodeError = fn
		}
	}
}

// NewTransport builds a transport for provider rooted at baseURL.
func NewTransport(provider, baseURL string, authorize Authorizer, opts ...Option) *Transport {
	t := &Transport{
		provider:   provider,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		authorize:  authorize,
	}
	t.breaker = newBreaker(provider, BreakerSettings{})
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func newBreaker(name string, settings BreakerSettings) *gobreaker.CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openFor := settings.OpenDuration
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
}

// Provider returns the provider name the transport was built for.
func (t *Transport) Provider() string {
	return t.provider
}

type callResult struct {
	status int
	body   []byte
}

// Do sends body as JSON (when non-nil) and decodes a 2xx response into out.
func (t *Transport) Do(ctx context.Context, cred Credential, operation, method, path string, body, out any) error {
	start := time.Now()
	err := t.do(ctx, cred, operation, method, path, body, out)
	if t.observer != nil {
		t.observer.ObserveCarrierCall(t.provider, operation, err, time.Since(start))
	}
	return err
}

func (t *Transport) do(ctx context.Context, cred Credential, operation, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", t.provider, operation, err)
		}
		payload = encoded
	}

	raw, err := t.breaker.Execute(func() (any, error) {
		return t.send(ctx, cred, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: circuit breaker open: %w", t.provider, operation, err)
	}
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			cerr.Operation = operation
			return cerr
		}
		return fmt.Errorf("%s %s: %w", t.provider, operation, err)
	}

	res := raw.(callResult)
	if res.status < 200 || res.status > 299 {
		return t.newError(operation, res)
	}
	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", t.provider, operation, err)
	}
	return nil
}

// send returns an error only for outcomes that should count against the breaker.
func (t *Transport) send(ctx context.Context, cred Credential, method, path string, payload []byte) (callResult, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.url(path), reader)
	if err != nil {
		return callResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.authorize != nil {
		t.authorize(req, cred)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return callResult{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return callResult{}, fmt.Errorf("read response: %w", err)
	}
	res := callResult{status: resp.StatusCode, body: data}
	if resp.StatusCode >= 500 {
		return callResult{}, t.newError("", res)
	}
	return res, nil
}

func (t *Transport) newError(operation string, res callResult) *Error {
	cerr := &Error{
		Provider:   t.provider,
		Operation:  operation,
		StatusCode: res.status,
		Body:       truncate(strings.TrimSpace(string(res.body)), 512),
	}
	if t.decodeError != nil {
		cerr.Messages = t.decodeError(res.body)
	}
	return cerr
}

func (t *Transport) url(path string) string {
	return t.baseURL + "/" + strings.TrimLeft(path, "/")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
