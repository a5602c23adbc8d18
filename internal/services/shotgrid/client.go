package shotgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Filter is a single [field, relation, value] query condition.
type Filter struct {
	Field    string
	Relation string
	Value    any
}

// Eq matches entities whose field equals the value.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Relation: "is", Value: value}
}

// In matches entities whose multi-entity field contains the value.
func In(field string, value any) Filter {
	return Filter{Field: field, Relation: "in", Value: value}
}

// MarshalJSON renders the filter in the wire form [field, relation, value].
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, f.Relation, f.Value})
}

// Session defines the tracking-system operations consumed by the delivery
// pipeline. The production implementation is Client; tests supply fakes.
type Session interface {
	Find(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Record, error)
	FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (Record, error)
	Update(ctx context.Context, entityType string, id int64, data map[string]any) error
	Upload(ctx context.Context, entityType string, id int64, field, path string) error
}

// Client talks to the tracking system's JSON API using script credentials.
type Client struct {
	baseURL    string
	scriptName string
	apiKey     string
	httpClient *http.Client
}

var _ Session = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a tracking-system client.
func New(baseURL, scriptName, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tracking base url required")
	}
	scriptName = strings.TrimSpace(scriptName)
	if scriptName == "" {
		return nil, errors.New("tracking script name required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tracking api key required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		scriptName: scriptName,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchRequest struct {
	Filters []Filter `json:"filters"`
	Fields  []string `json:"fields"`
	Limit   int      `json:"limit,omitempty"`
}

type searchResponse struct {
	Data []Record `json:"data"`
}

// Find returns all entities matching the filters with the requested fields.
func (c *Client) Find(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Record, error) {
	payload, err := json.Marshal(searchRequest{Filters: filters, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/entity/%s/_search", url.PathEscape(entityType)), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Data, nil
}

// FindOne returns the first entity matching the filters, or nil when none
// matches.
func (c *Client) FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (Record, error) {
	payload, err := json.Marshal(searchRequest{Filters: filters, Fields: fields, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/entity/%s/_search", url.PathEscape(entityType)), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, nil
	}
	return parsed.Data[0], nil
}

// Update writes field values on an existing entity.
func (c *Client) Update(ctx context.Context, entityType string, id int64, data map[string]any) error {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/entity/%s/%d", url.PathEscape(entityType), id), bytes.NewReader(payload), "application/json")
	return err
}

// Upload attaches a local file to an entity field.
func (c *Client) Upload(ctx context.Context, entityType string, id int64, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload source: %w", err)
	}
	defer file.Close()

	endpoint := fmt.Sprintf(
		"/api/v1/entity/%s/%d/%s/_upload?filename=%s",
		url.PathEscape(entityType), id, url.PathEscape(field),
		url.QueryEscape(filepath.Base(path)),
	)
	_, err = c.do(ctx, http.MethodPost, endpoint, file, "application/octet-stream")
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-SG-Script-Name", c.scriptName)
	req.Header.Set("X-SG-Script-Key", c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tracking api %s %s returned %d (latency=%v)", method, endpoint, resp.StatusCode, latency)
	}
	return payload, nil
}
