// Package sdk is a small HTTP client for the staticembed encode API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Sentinel errors mapped from API status codes.
var (
	ErrQuotaExceeded = errors.New("sdk: token quota exceeded")
	ErrUnavailable   = errors.New("sdk: service unavailable")
)

// Client talks to a staticembed server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the given base URL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EncodeResponse is the result of an Encode call.
type EncodeResponse struct {
	Model   string      `json:"model"`
	Dim     int         `json:"dim"`
	Vectors [][]float32 `json:"vectors"`
	Usage   Usage       `json:"usage"`
}

// Usage reports token consumption for a request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type encodeRequest struct {
	Sentences []string `json:"sentences"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode sends sentences to POST /v1/encode and returns their vectors in order.
func (c *Client) Encode(ctx context.Context, sentences []string) (EncodeResponse, error) {
	body, err := json.Marshal(encodeRequest{Sentences: sentences})
	if err != nil {
		return EncodeResponse{}, fmt.Errorf("sdk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/encode", bytes.NewReader(body))
	if err != nil {
		return EncodeResponse{}, fmt.Errorf("sdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return EncodeResponse{}, fmt.Errorf("sdk: encode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return EncodeResponse{}, parseError(resp)
	}

	var out EncodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return EncodeResponse{}, fmt.Errorf("sdk: decode response: %w", err)
	}
	return out, nil
}

// Healthy reports whether the server's health endpoint returns OK.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: health request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sdk: health status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var ae apiError
	msg := string(body)
	if json.Unmarshal(body, &ae) == nil && ae.Message != "" {
		msg = ae.Message
	}

	switch resp.StatusCode {
	case http.StatusPaymentRequired:
		return fmt.Errorf("sdk: %s: %w", msg, ErrQuotaExceeded)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return fmt.Errorf("sdk: %s: %w", msg, ErrUnavailable)
	default:
		return fmt.Errorf("sdk: api error %d: %s", resp.StatusCode, msg)
	}
}
