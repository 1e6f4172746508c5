// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/chatsync/lib/secret"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// ServiceURL is the base URL of the chat service (e.g., "https://talk.example.com").
	ServiceURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the chat service HTTP API. It holds the base URL and
// HTTP transport; auth tokens are supplied per call by the session
// layer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new chat service client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServiceURL == "" {
		return nil, fmt.Errorf("gateway: ServiceURL is required")
	}
	if _, err := url.Parse(config.ServiceURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid ServiceURL %q: %w", config.ServiceURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.ServiceURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a long-poll error to
// force subsequent requests onto fresh TCP connections instead of a
// poisoned pooled one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// call POSTs a JSON request body to /talk/v1/<method> and decodes the
// 2xx response body into result (which may be nil for calls with no
// response payload). Non-2xx responses are returned as *ServiceError.
// token may be nil for unauthenticated methods.
func (c *Client) call(ctx context.Context, method string, token *secret.Buffer, requestBody, result any) error {
	body, err := c.doRequest(ctx, "/talk/v1/"+method, token, requestBody)
	if err != nil {
		return fmt.Errorf("gateway: %s failed: %w", method, err)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("gateway: failed to parse %s response: %w", method, err)
	}
	return nil
}

// doRequest performs an HTTP POST to the service and returns the
// response body. On 2xx, returns the body. On 4xx/5xx, returns a
// *ServiceError.
func (c *Client) doRequest(ctx context.Context, path string, token *secret.Buffer, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		request.Header.Set("Authorization", "Bearer "+token.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All service error responses use the same JSON shape.
	var serviceErr ServiceError
	if jsonErr := json.Unmarshal(responseBody, &serviceErr); jsonErr != nil || serviceErr.Code == "" {
		// Non-JSON error from a proxy or misconfigured server. Fail
		// loud with the raw body.
		return nil, fmt.Errorf("unexpected %d response from %s: %s",
			response.StatusCode, path, string(responseBody))
	}
	serviceErr.StatusCode = response.StatusCode

	return nil, &serviceErr
}
