package deadline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/services"
)

// Payload is the farm job submission body. JobInfo carries the dynamic
// EnvironmentKeyValueN entries, so it stays map-shaped; key names are the
// farm protocol contract.
type Payload struct {
	JobInfo    map[string]any `json:"JobInfo"`
	PluginInfo map[string]any `json:"PluginInfo"`
	AuxFiles   []string       `json:"AuxFiles"`
}

// SetEnvironment writes the environment map into JobInfo using the
// indexed EnvironmentKeyValueN convention. Iteration order follows the
// supplied key slice so payloads stay deterministic.
func (p *Payload) SetEnvironment(keys []string, env map[string]string) {
	if p.JobInfo == nil {
		p.JobInfo = make(map[string]any)
	}
	for index, key := range keys {
		p.JobInfo[fmt.Sprintf("EnvironmentKeyValue%d", index)] = fmt.Sprintf("%s=%s", key, env[key])
	}
}

// Submitter defines farm submission behaviour. Submission failures are
// run-fatal; there is no retry.
type Submitter interface {
	SubmitJob(ctx context.Context, payload Payload) (string, error)
}

// Client submits jobs to the farm webservice.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Submitter = (*Client)(nil)

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

// New creates a farm submission client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("farm webservice url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type submitResponse struct {
	ID string `json:"_id"`
}

// SubmitJob posts the payload and returns the farm job id.
func (c *Client) SubmitJob(ctx context.Context, payload Payload) (string, error) {
	if payload.AuxFiles == nil {
		// Mandatory for the farm API, may be empty.
		payload.AuxFiles = []string{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "submit farm job", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrTransport, "submit farm job", fmt.Sprintf("webservice returned %d", resp.StatusCode), nil)
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if parsed.ID == "" {
		return "", services.Wrap(services.ErrTransport, "submit farm job", "response missing job id", nil)
	}
	return parsed.ID, nil
}
