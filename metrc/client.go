// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package metrc provides an authenticated HTTP client for the Metrc
// state track-and-trace API, scoped to a single facility's credential set.
//
// Every request is signed with HTTP Basic authentication (vendor key as
// username, user key as password) and carries the facility's license number
// as a query parameter unless the caller overrides it. The client performs
// no retries of its own; retry policy belongs to the sync orchestrator so it
// stays uniform across data types.
package metrc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Environment selects which Metrc deployment a client talks to.
// Sandbox and production endpoints must never be mixed within one client.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

const (
	sandboxBaseURL    = "https://sandbox-api-ca.metrc.com"
	productionBaseURL = "https://api-ca.metrc.com"
)

// BaseURL resolves the environment to its fixed base endpoint.
func (e Environment) BaseURL() (string, error) {
	switch e {
	case Sandbox:
		return sandboxBaseURL, nil
	case Production:
		return productionBaseURL, nil
	default:
		return "", fmt.Errorf("unknown metrc environment %q", string(e))
	}
}

// Credentials is one facility's credential set. The three fields are owned
// together: rotation replaces the whole set, never a single field.
type Credentials struct {
	VendorKey     string
	UserKey       string
	LicenseNumber string
}

// Validate rejects partial credential sets.
func (c Credentials) Validate() error {
	if c.VendorKey == "" || c.UserKey == "" || c.LicenseNumber == "" {
		return fmt.Errorf("incomplete credential set: vendor key, user key and license number are all required")
	}
	return nil
}

// Key identifies the credential pair for rate limiting. License number is
// deliberately excluded: the upstream ceiling applies per key pair.
func (c Credentials) Key() string {
	return c.VendorKey + ":" + c.UserKey
}

// Client performs authenticated HTTP calls on behalf of one facility.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	creds      Credentials
	logger     *slog.Logger
}

// NewClient creates a client for the given environment. Pass nil for
// httpClient or logger to use defaults.
func NewClient(creds Credentials, env Environment, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := env.BaseURL()
	if err != nil {
		return nil, err
	}
	return NewClientWithBaseURL(creds, base, httpClient, logger)
}

// NewClientWithBaseURL creates a client against an explicit base URL.
// Intended for tests and self-hosted upstream mocks.
func NewClientWithBaseURL(creds Credentials, baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		creds:      creds,
		logger:     logger,
	}, nil
}

// Credentials returns the credential set this client was built with.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	q := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	// The facility's own license is attached unless the caller asked for a
	// cross-license read (e.g. transfers shared by another license).
	if q.Get("licenseNumber") == "" {
		q.Set("licenseNumber", c.creds.LicenseNumber)
	}
	target.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.creds.VendorKey, c.creds.UserKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Metrc request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("metrc %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Metrc request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The response body is intentionally discarded: upstream error bodies
		// may echo request details and must not propagate past this client.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
	}

	if out == nil {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}
