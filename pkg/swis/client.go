/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package swis is a client for the SolarWinds Information Service JSON
// REST API (v3).
package swis

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carverauto/orionsync/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second

	// jsonBasePath is the SWIS JSON endpoint prefix shared by all verbs.
	jsonBasePath = "/SolarWinds/InformationService/v3/Json"
)

// Config holds the SWIS connection settings.
type Config struct {
	// Endpoint is the base URL of the Orion host running the SWIS service,
	// e.g. "https://orion.example.com:17774".
	Endpoint string `json:"endpoint"`
	Username string `json:"username"`
	Password string `json:"password"`

	// InsecureSkipVerify disables TLS certificate verification. Orion
	// installations commonly ship with self-signed certificates.
	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	// Timeout bounds each individual SWIS request. Zero means 30s.
	Timeout time.Duration `json:"-"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errEndpointRequired
	}

	if c.Username == "" {
		return errUsernameRequired
	}

	return nil
}

// SwisClient is the HTTP implementation of Client.
type SwisClient struct {
	config  Config
	http    HTTPClient
	baseURL string
	logger  logger.Logger
}

var _ Client = (*SwisClient)(nil)

// NewClient creates a SWIS client from the given config. The underlying
// HTTP client is wrapped in a circuit breaker so that a dead or flapping
// Orion host fails fast instead of burning the full timeout on every call.
func NewClient(cfg *Config, log logger.Logger) *SwisClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // deliberate, config-gated
		}
	}

	httpClient := NewCircuitBreakerHTTPClient(
		&http.Client{Timeout: timeout, Transport: transport},
		"swis",
		DefaultCircuitBreakerConfig(),
		log,
	)

	return &SwisClient{
		config:  *cfg,
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.Endpoint, "/") + jsonBasePath,
		logger:  log,
	}
}

// NewClientWithHTTP creates a SWIS client with a caller-supplied HTTP
// client. Used by tests and callers that manage their own transport.
func NewClientWithHTTP(cfg *Config, httpClient HTTPClient, log logger.Logger) *SwisClient {
	return &SwisClient{
		config:  *cfg,
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.Endpoint, "/") + jsonBasePath,
		logger:  log,
	}
}

// queryRequest is the POST body for the Query endpoint.
type queryRequest struct {
	Query      string                 `json:"query"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// queryResponse wraps the results array SWIS returns for a query.
type queryResponse struct {
	Results json.RawMessage `json:"results"`
}

// Query implements Client.
func (c *SwisClient) Query(ctx context.Context, query string, params map[string]interface{}, out interface{}) error {
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/Query", queryRequest{Query: query, Parameters: params})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	var resp queryResponse

	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse query response: %w", err)
	}

	if err := json.Unmarshal(resp.Results, out); err != nil {
		return fmt.Errorf("failed to decode query results: %w", err)
	}

	return nil
}

// Invoke implements Client. args are marshaled as the JSON array body the
// Invoke endpoint expects.
func (c *SwisClient) Invoke(ctx context.Context, entity, verb string, args []interface{}, out interface{}) error {
	if args == nil {
		args = []interface{}{}
	}

	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/Invoke/%s/%s", c.baseURL, entity, verb), args)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s.%s result: %w", entity, verb, err)
	}

	return nil
}

// Update implements Client.
func (c *SwisClient) Update(ctx context.Context, uri string, fields map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+uri, fields)
	return err
}

// Delete implements Client.
func (c *SwisClient) Delete(ctx context.Context, uri string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/"+uri, nil)
	return err
}

// Read implements Client.
func (c *SwisClient) Read(ctx context.Context, uri string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/"+uri, nil)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode record at %s: %w", uri, err)
	}

	return nil
}

// Ping verifies connectivity and credentials with a trivial query before
// any lifecycle work starts.
func (c *SwisClient) Ping(ctx context.Context) error {
	if err := c.Query(ctx, "SELECT Uri FROM Orion.Environment", nil, nil); err != nil {
		return fmt.Errorf("failed to query Orion, check hostname, username, and/or password: %w", err)
	}

	return nil
}

// do sends one SWIS request and returns the raw response body.
func (c *SwisClient) do(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader = http.NoBody

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d, response: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Msg("SWIS request completed")

	return body, nil
}
