package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPProvider reads vendor metrics from the reputation service's REST API.
// Outgoing calls are throttled by a token bucket.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		p.client = c
	}
}

// WithRateLimit throttles requests to perSecond with the given burst. A
// non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(p *HTTPProvider) {
		if perSecond <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewHTTPProvider creates a provider against baseURL.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetMetrics implements MetricsProvider.
func (p *HTTPProvider) GetMetrics(ctx context.Context, vendorID string) (*domain.VendorMetrics, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	u := p.baseURL + "/api/v1/vendors/" + url.PathEscape(vendorID) + "/metrics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching metrics for vendor %s: %w", vendorID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, vendorID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("metrics service returned %d for vendor %s", resp.StatusCode, vendorID)
	}

	var m domain.VendorMetrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding metrics for vendor %s: %w", vendorID, err)
	}
	if m.VendorID == "" {
		m.VendorID = vendorID
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
