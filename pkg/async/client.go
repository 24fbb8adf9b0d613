// Package async carries generation jobs from the Slack router to the worker:
// Client posts a job to the trigger endpoint, and Endpoint receives it and
// starts a worker execution.
package async

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/savaki/mailreply-bot/pkg/models"
)

// DefaultTriggerTimeout bounds a trigger call
const DefaultTriggerTimeout = time.Second

// Client posts generation jobs to the trigger endpoint
type Client struct {
	endpoint   string
	authHeader string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-call deadline
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithAuthHeader sets the Authorization header sent with every trigger
func WithAuthHeader(value string) Option {
	return func(c *Client) {
		c.authHeader = value
	}
}

// NewClient creates a trigger client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		timeout:    DefaultTriggerTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger posts job and waits at most the configured timeout. The response
// body is ignored; only a non-2xx status is an error.
func (c *Client) Trigger(ctx context.Context, job models.GenerationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post trigger: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post trigger: status %d", resp.StatusCode)
	}
	return nil
}
