// Package client talks to the placement HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/goplacement/internal/resolver"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

// ErrNotModified is returned by Rules when the server answered 304.
var ErrNotModified = errors.New("rules not modified")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int               `json:"-"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Code, e.Message)
}

// Client is an HTTP client for the placement API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Resolution is the answer of /v1/resolve.
type Resolution struct {
	Host      string              `json:"host" yaml:"host"`
	Source    rules.Source        `json:"source" yaml:"source"`
	Decisions []resolver.Decision `json:"decisions" yaml:"decisions"`
}

// Rendering is the answer of /v1/render.
type Rendering struct {
	Host   string       `json:"host" yaml:"host"`
	Source rules.Source `json:"source" yaml:"source"`
	Head   string       `json:"head" yaml:"head"`
	Footer string       `json:"footer" yaml:"footer"`
}

// RuleSet is the answer of /v1/rules together with its ETag.
type RuleSet struct {
	rules.RuleSet `yaml:",inline"`
	ETag          string `json:"-" yaml:"-"`
}

// Resolve asks which scripts apply to host.
func (c *Client) Resolve(ctx context.Context, host string) (*Resolution, error) {
	var out Resolution
	if err := c.do(ctx, http.MethodGet, "/v1/resolve", url.Values{"host": {host}}, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Render returns the head and footer markup for host.
func (c *Client) Render(ctx context.Context, host string) (*Rendering, error) {
	var out Rendering
	if err := c.do(ctx, http.MethodGet, "/v1/render", url.Values{"host": {host}}, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rules fetches the effective rule set. A non-empty etag is sent as
// If-None-Match; ErrNotModified means it is still current.
func (c *Client) Rules(ctx context.Context, etag string) (*RuleSet, error) {
	var out RuleSet
	header := http.Header{}
	if etag != "" {
		header.Set("If-None-Match", etag)
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/rules", nil, header, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	out.ETag = resp.Header.Get("ETag")
	return &out, nil
}

// GetOptions reads every option (admin).
func (c *Client) GetOptions(ctx context.Context) (map[string]string, error) {
	var out struct {
		Options map[string]string `json:"options"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/options", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

// SetOptions updates the given options and leaves the rest alone (admin).
// An empty value clears a key.
func (c *Client) SetOptions(ctx context.Context, values map[string]string) (map[string]string, error) {
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var out struct {
		Options map[string]string `json:"options"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/options", nil, nil, body, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte, out any) error {
	resp, err := c.send(ctx, method, path, query, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(bodyBytes))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
