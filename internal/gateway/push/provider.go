// Package push delivers push notifications through two providers with
// per-token fallback from primary to secondary.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"service-dispatch/internal/apperr"
)

// Message is the payload handed to a provider.
type Message struct {
	Event string         `json:"event"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Provider sends one message to one device token.
type Provider interface {
	Send(ctx context.Context, token string, msg Message) error
}

// HTTPProvider is a push provider backed by an HTTP JSON endpoint.
type HTTPProvider struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPProvider creates an HTTP push provider. Returns nil for an empty URL
// so a missing secondary provider degrades to primary-only delivery.
func NewHTTPProvider(name, url, apiKey string, timeout time.Duration) *HTTPProvider {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		name:   name,
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs.
func (p *HTTPProvider) Name() string { return p.name }

// Send posts the message for one token.
func (p *HTTPProvider) Send(ctx context.Context, token string, msg Message) error {
	body, err := json.Marshal(struct {
		To string `json:"to"`
		Message
	}{To: token, Message: msg})
	if err != nil {
		return fmt.Errorf("push marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: push %s: %v", apperr.ErrUpstream, p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: push %s status %d", apperr.ErrUpstream, p.name, resp.StatusCode)
	}
	return nil
}
