// Package engineclient implements the task source over the
// durable-execution engine's HTTP API.
//
// The worker never persists tasks itself: it long-polls the engine for
// work and reports each task's outcome back. Auth is a bearer token when
// the deployment requires one.
package engineclient

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
	"time"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/taskqueue"
)

var _ taskqueue.Source = (*Client)(nil)

// Client is an HTTP client for the engine's task API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 70 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// failRequest is the body of a task failure report.
type failRequest struct {
	Error string `json:"error"`
}

// completeRequest is the body of a task completion report.
type completeRequest struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// Poll asks the engine for the next task on queue. A 204 means the queue
// is empty and returns (nil, nil).
func (c *Client) Poll(ctx context.Context, queue string) (*airlift.Task, error) {
	u := fmt.Sprintf("%s/v1/queues/%s/poll", c.baseURL, url.PathEscape(queue))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("engine poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine poll %s: %w", queue, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var t airlift.Task
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		t.ReceivedAt = time.Now().UTC()
		return &t, nil
	default:
		return nil, c.statusError("poll", queue, resp)
	}
}

// Complete reports a successful task outcome.
func (c *Client) Complete(ctx context.Context, t *airlift.Task, result []byte) error {
	u := fmt.Sprintf("%s/v1/tasks/%s/complete", c.baseURL, url.PathEscape(t.ID))
	return c.post(ctx, u, completeRequest{Result: result})
}

// Fail reports a failed task outcome. The engine owns retry policy; the
// worker only reports.
func (c *Client) Fail(ctx context.Context, t *airlift.Task, taskErr error) error {
	u := fmt.Sprintf("%s/v1/tasks/%s/fail", c.baseURL, url.PathEscape(t.ID))
	return c.post(ctx, u, failRequest{Error: taskErr.Error()})
}

// post sends a JSON body and expects a 2xx response.
func (c *Client) post(ctx context.Context, u string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine post %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError("post", u, resp)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) statusError(op, target string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("engine %s %s: status %d: %s", op, target, resp.StatusCode, strings.TrimSpace(string(body)))
}
