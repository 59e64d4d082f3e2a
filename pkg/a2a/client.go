package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
)

// TransportError wraps connection-level failures (agent unreachable,
// connection reset). Callers treat these as run-fatal; in-protocol errors
// come back as *RemoteError instead.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("agent unreachable: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx reply from a reachable agent.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agent returned %d: %s", e.StatusCode, e.Message)
}

// Client talks the agent-to-agent protocol over HTTP. All calls are
// synchronous from the caller's perspective and honor the request context.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a protocol client for one agent base URL. The timeout
// bounds each individual request unless the context is tighter.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the agent base URL this client targets.
func (c *Client) BaseURL() string { return c.base }

// Card fetches the agent's capability card.
func (c *Client) Card(ctx context.Context) (*AgentCard, error) {
	var card AgentCard
	if err := c.get(ctx, "/card", &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Health runs the agent's passive health probe.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Reset clears the agent's per-run state.
func (c *Client) Reset(ctx context.Context) error {
	var resp ResetResponse
	return c.post(ctx, "/reset", nil, &resp)
}

// Call sends an /a2a envelope and decodes the reply into out.
func (c *Client) Call(ctx context.Context, method string, args any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	return c.post(ctx, "/a2a", Envelope{Method: method, Args: raw}, out)
}

// ListTools performs tool discovery. Descriptor order is preserved.
func (c *Client) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	var resp ToolListResponse
	if err := c.get(ctx, "/v1/tools", &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// InvokeTool issues one ToolCall. A tool-level failure is not an error
// here: it arrives as a ToolResult with status error.
func (c *Client) InvokeTool(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	var result domain.ToolResult
	path := "/v1/tools/" + url.PathEscape(call.Tool) + "/invoke"
	err := c.post(ctx, path, ToolInvokeRequest{Arguments: call.Arguments}, &result)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		var remote ErrorResponse
		if json.Unmarshal(body, &remote) == nil && remote.Message != "" {
			msg = remote.Message
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
