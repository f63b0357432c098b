// Package routing wraps the distance/routing collaborator. Production uses
// the HTTP client; non-production environments use the deterministic stub.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/geo"
)

// Result is what the routing service reports for a leg.
type Result struct {
	DistanceKM      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Gateway computes travel distance between two points.
type Gateway interface {
	Distance(ctx context.Context, a, b geo.Point) (Result, error)
}

// HTTPGateway is a routing gateway backed by an HTTP JSON API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a routing gateway for the given base URL.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Distance calls GET {base}/route?from=lat,lng&to=lat,lng.
func (g *HTTPGateway) Distance(ctx context.Context, a, b geo.Point) (Result, error) {
	q := url.Values{}
	q.Set("from", fmt.Sprintf("%f,%f", a.Lat, a.Lng))
	q.Set("to", fmt.Sprintf("%f,%f", b.Lat, b.Lng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("routing request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: routing: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: routing status %d", apperr.ErrUpstream, resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: routing decode: %v", apperr.ErrUpstream, err)
	}
	return out, nil
}
