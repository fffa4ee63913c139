// Package detail fetches site detail records from the excavation API.
package detail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status from detail endpoint")

// DefaultTimeout bounds a single detail request.
const DefaultTimeout = 10 * time.Second

// maxBody caps the decoded payload size.
const maxBody = 4 << 20

// Fetcher loads the detail record of a site.
type Fetcher interface {
	Fetch(ctx context.Context, id model.FeatureID) (*model.SiteDetails, error)
}

// Client calls GET {base}/sitesFouilles/{id}/details.
type Client struct {
	base    string
	http    *http.Client
	log     logging.Logger
	metrics *observability.DetailCollector
}

var _ Fetcher = (*Client)(nil)

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMetrics records request latency.
func WithMetrics(m *observability.DetailCollector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client for the API rooted at baseURL. Requests are traced
// through an otelhttp transport.
func NewClient(baseURL string, timeout time.Duration, log logging.Logger, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Noop()
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint for id.
func (c *Client) URL(id model.FeatureID) string {
	return fmt.Sprintf("%s/sitesFouilles/%s/details", c.base, id)
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, id model.FeatureID) (*model.SiteDetails, error) {
	start := time.Now()
	details, err := c.fetch(ctx, id)
	c.metrics.ObserveFetch(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch details for %s: %w", id, err)
	}
	c.log.Debug(ctx, "site details fetched",
		logging.Feature(id),
		logging.Int("vestiges", len(details.Vestiges)),
		logging.Int("bibliographies", len(details.Bibliographies)),
	)
	return details, nil
}

func (c *Client) fetch(ctx context.Context, id model.FeatureID) (*model.SiteDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var details model.SiteDetails
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &details, nil
}
