// Package waqi provides a client for the World Air Quality Index feed API.
package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"

	// ProviderName identifies this provider.
	ProviderName = "waqi"

	statusOK = "ok"
)

// Protocol errors.
var (
	ErrMissingStatus = errors.New("response has no status")
	ErrStatusNotOK   = errors.New("response status is not ok")
	ErrMissingData   = errors.New("response has no data")
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts and non-2xx responses.
	KindTransport ErrorKind = "transport"

	// KindProtocol covers unparseable bodies and non-ok statuses.
	KindProtocol ErrorKind = "protocol"
)

// FetchError is returned for every failed Fetch.
type FetchError struct {
	Kind   ErrorKind
	Region string
	City   string
	Date   string
	Err    error
}

func (e *FetchError) Error() string {
	target := e.City
	if e.Date != "" {
		target += " on " + e.Date
	}
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the API token appended to every request (required).
	Token string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a resilience client whose breaker observes but never rejects
	// is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry receives provider health records for the default client (optional).
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a WAQI feed API client. It implements airquality.Fetcher.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		// Every query gets its own request, so the breaker only observes.
		breaker := resilience.ObserveCircuitBreakerConfig(ProviderName)
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:           ProviderName,
			Timeout:        timeout,
			CircuitBreaker: &breaker,
			Registry:       cfg.Registry,
		})
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types (from the WAQI feed endpoint).

// feedResponse is the envelope. Data is an object on success and an error
// message string otherwise.
type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	// AQI is usually a number but the API sends "-" when no index is available.
	AQI  json.RawMessage      `json:"aqi"`
	IAQI map[string]iaqiEntry `json:"iaqi"`
	City cityData             `json:"city"`
}

type iaqiEntry struct {
	V json.RawMessage `json:"v"`
}

type cityData struct {
	Name string    `json:"name"`
	Geo  []float64 `json:"geo"`
}

// Fetch issues one feed request for q and normalizes the response into a Reading.
// It never retries; every failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, q airquality.Query) (*airquality.Reading, error) {
	data, err := c.fetchFeed(ctx, q)
	if err != nil {
		return nil, err
	}
	return toReading(q, data), nil
}

func (c *Client) fetchFeed(ctx context.Context, q airquality.Query) (*feedData, error) {
	fail := func(kind ErrorKind, err error) error {
		return &FetchError{
			Kind:   kind,
			Region: q.Location.Region,
			City:   q.Location.City,
			Date:   q.DateString(),
			Err:    err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL(q), http.NoBody)
	if err != nil {
		return nil, fail(KindTransport, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(KindTransport, fmt.Errorf("fetch feed: %w", c.redact(err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fail(KindTransport, fmt.Errorf("unexpected status %d from feed endpoint", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(KindTransport, fmt.Errorf("read feed response: %w", err))
	}

	var envelope feedResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fail(KindProtocol, fmt.Errorf("decode feed response: %w", err))
	}

	switch envelope.Status {
	case statusOK:
	case "":
		return nil, fail(KindProtocol, ErrMissingStatus)
	default:
		return nil, fail(KindProtocol, fmt.Errorf("%w: %s", ErrStatusNotOK, statusMessage(envelope)))
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fail(KindProtocol, ErrMissingData)
	}

	var data feedData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fail(KindProtocol, fmt.Errorf("decode feed data: %w", err))
	}

	return &data, nil
}

// feedURL builds {base}/feed/{city}/?token=...[&date=YYYY-MM-DD].
func (c *Client) feedURL(q airquality.Query) string {
	values := url.Values{}
	values.Set("token", c.token)
	if q.Date != nil {
		values.Set("date", q.DateString())
	}
	return fmt.Sprintf("%s/feed/%s/?%s", c.baseURL, url.PathEscape(q.Location.City), values.Encode())
}

// redact strips the token from URLs embedded in transport errors so it never
// reaches the logs.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if c.token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, url.QueryEscape(c.token), "REDACTED")
	}
	return err
}

// statusMessage extracts the upstream error message, if any.
func statusMessage(envelope feedResponse) string {
	var msg string
	if err := json.Unmarshal(envelope.Data, &msg); err == nil && msg != "" {
		return envelope.Status + " (" + msg + ")"
	}
	return envelope.Status
}

// toReading converts feed data to a domain Reading.
func toReading(q airquality.Query, data *feedData) *airquality.Reading {
	pollutants := make(map[airquality.Pollutant]airquality.Value[float64], len(airquality.Pollutants))
	for _, p := range airquality.Pollutants {
		pollutants[p] = lookup(data.IAQI, p)
	}

	loc := q.Location
	if loc.Coordinates == nil && len(data.City.Geo) == 2 {
		loc.Coordinates = &airquality.Coordinates{Lat: data.City.Geo[0], Lon: data.City.Geo[1]}
	}

	aqi := airquality.None[int]()
	if v, ok := number(data.AQI); ok {
		aqi = airquality.Some(int(v))
	}

	return airquality.NewReading(loc, q.Date, aqi, pollutants)
}

// lookup reads iaqi[code].v. A missing key or a missing or non-numeric value
// is not reported.
func lookup(iaqi map[string]iaqiEntry, p airquality.Pollutant) airquality.Value[float64] {
	entry, ok := iaqi[string(p)]
	if !ok {
		return airquality.None[float64]()
	}
	v, ok := number(entry.V)
	if !ok {
		return airquality.None[float64]()
	}
	return airquality.Some(v)
}

// number decodes raw as a JSON number.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
