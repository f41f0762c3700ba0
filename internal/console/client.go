// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package console

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIVersion is the management console REST API version.
const DefaultAPIVersion = "v2.1"

// connection pooling limits; one scope batch holds at most one connection per data type
const (
	defaultMaxIdleConns        = 50
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// ErrAuthFailed is returned when neither token scheme is accepted by the console.
var ErrAuthFailed = errors.New("console rejected the API token")

// ClientConfig holds the connection settings for the management console.
type ClientConfig struct {
	BaseURL    string
	APIVersion string
	Proxy      string
	VerifyTLS  bool
}

// Response holds the outcome of one GET against the console.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// OK reports whether the status code is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the explicit transport and auth context for console calls.
// It is safe for concurrent use once Authenticate has returned.
type Client struct {
	baseURL    string
	apiVersion string
	headers    http.Header
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a console client. No request timeout is set beyond the
// transport defaults.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid console URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("console URL must be http or https, got %q", cfg.BaseURL)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // operator opt-out for self-signed consoles
		},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	return &Client{
		baseURL:    base.String(),
		apiVersion: apiVersion,
		headers:    headers,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}, nil
}

// APIPath returns the versioned REST path for a resource, e.g. "exclusions".
func (c *Client) APIPath(resource string) string {
	return fmt.Sprintf("/web/api/%s/%s", c.apiVersion, strings.TrimLeft(resource, "/"))
}

// Authenticate probes the console with the "ApiToken" scheme and falls back to
// "Token". The accepted Authorization header is kept for all later calls.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	if token == "" {
		return ErrAuthFailed
	}

	var lastStatus int
	for _, scheme := range []string{"ApiToken", "Token"} {
		c.headers.Set("Authorization", scheme+" "+token)
		resp, err := c.Get(ctx, c.APIPath("system/info"), nil)
		if err != nil {
			return fmt.Errorf("failed to reach console: %w", err)
		}
		if resp.OK() {
			c.logger.Info("Authenticated to console",
				zap.String("console", c.baseURL),
				zap.String("scheme", scheme))
			return nil
		}
		lastStatus = resp.StatusCode
		c.logger.Debug("Token scheme rejected",
			zap.String("scheme", scheme),
			zap.Int("status", resp.StatusCode))
	}

	c.headers.Del("Authorization")
	return fmt.Errorf("%w (status %d)", ErrAuthFailed, lastStatus)
}

// UserScope returns the access scope of the authenticated user ("global",
// "account" or "site").
func (c *Client) UserScope(ctx context.Context) (string, error) {
	resp, err := c.Get(ctx, c.APIPath("user"), nil)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &HTTPStatusError{URL: resp.URL, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var payload struct {
		Data struct {
			Scope string `json:"scope"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", &TransportError{URL: resp.URL, Err: fmt.Errorf("malformed user response: %w", err)}
	}
	return payload.Data.Scope, nil
}

// Get issues a GET for path with the given query parameters. A non-2xx status
// is not an error; the caller decides from Response.StatusCode.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{URL: target}, &TransportError{URL: target, Err: err}
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	c.logger.Debug("Calling console API", zap.String("url", target))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{URL: target, Latency: time.Since(start)}, &TransportError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{URL: target, StatusCode: resp.StatusCode, Latency: time.Since(start)},
			&TransportError{URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}, nil
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
