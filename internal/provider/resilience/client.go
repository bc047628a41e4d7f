package resilience

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and health tracking.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives success/failure records for this client (optional).
	Registry *Registry

	// Transport overrides the underlying round tripper (optional).
	Transport http.RoundTripper
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		CircuitBreaker: &cbConfig,
	}
}

// Client is an HTTP client guarded by a circuit breaker.
// Each call issues exactly one request; failures are never retried.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	mode           BreakerMode
	config         ClientConfig

	// stateChangedAt is the UnixNano time of the last transition, 0 if none.
	stateChangedAt atomic.Int64
}

// NewClient creates a new resilient HTTP client and registers it with the
// configured Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		registry: cfg.Registry,
		mode:     cbConfig.Mode,
		config:   cfg,
	}

	// gobreaker calls this with its own lock held, so it must not take the
	// registry lock.
	onStateChange := cbConfig.OnStateChange
	cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
		c.stateChangedAt.Store(time.Now().UnixNano())
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}
	c.circuitBreaker = NewCircuitBreaker[*http.Response](cbConfig) //nolint:bodyclose // type param, not response

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Do executes an HTTP request through the circuit breaker.
// 5xx responses count as breaker failures but are still returned to the caller
// so it can inspect the status. In ModeReject an open circuit returns
// ErrCircuitOpen; in ModeObserve the request is sent regardless.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
		return c.send(req)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if c.mode != ModeObserve {
			c.recordFailure(ErrCircuitOpen)
			return nil, ErrCircuitOpen
		}
		resp, err = c.send(req) //nolint:bodyclose // caller is responsible for closing
	}

	if err != nil {
		c.recordFailure(err)

		var serverErr *ServerError
		if errors.As(err, &serverErr) && resp != nil {
			return resp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return resp, nil
}

// send issues exactly one request. A 5xx response is returned together with
// a *ServerError.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode >= 500 {
		return r, &ServerError{StatusCode: r.StatusCode}
	}
	return r, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// Mode returns the breaker mode.
func (c *Client) Mode() BreakerMode {
	return c.mode
}

// StateChangedAt returns when the circuit last changed state, nil if never.
func (c *Client) StateChangedAt() *time.Time {
	n := c.stateChangedAt.Load()
	if n == 0 {
		return nil
	}
	t := time.Unix(0, n)
	return &t
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
