// Package backendclient talks to a remote command backend over its JSON
// endpoints. It satisfies the agent's command runner and materializer
// dependencies so the agent loop can run against a backend on another host.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"pkt.systems/icoder/internal/version"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// DefaultTimeout bounds one backend request. It sits above the executor
// timeout so command timeouts are reported by the backend.
const DefaultTimeout = 45 * time.Second

// StatusError reports a non-2xx backend reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Server returned %d", e.Code)
}

// ConnectError reports a backend that could not be reached.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return "Cannot connect to command server. " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// RawReplyError carries a 2xx reply that is not JSON.
type RawReplyError struct {
	Body string
	Err  error
}

func (e *RawReplyError) Error() string {
	return "Server response: " + e.Body
}

func (e *RawReplyError) Unwrap() error {
	return e.Err
}

// Client is an HTTP client for the command backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New constructs a backend client for baseURL (e.g. http://localhost:3001).
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: scheme and host required", baseURL)
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type executeReply struct {
	schema.ExecuteResponse
	Error string `json:"error,omitempty"`
}

// Execute runs a command on the backend.
func (c *Client) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	var reply executeReply
	if err := c.post(ctx, "/api/execute", req, &reply); err != nil {
		// A reply that is not JSON is narrated verbatim rather than failed.
		var raw *RawReplyError
		if errors.As(err, &raw) {
			return schema.ExecuteResponse{Output: raw.Error(), Cwd: req.WorkingDir}, nil
		}
		return schema.ExecuteResponse{}, err
	}
	if reply.Error != "" && !reply.Success && reply.Output == "" {
		if strings.EqualFold(reply.Error, "No command provided") {
			return schema.ExecuteResponse{}, schema.ErrNoCommand
		}
		return schema.ExecuteResponse{}, errors.New(reply.Error)
	}
	return reply.ExecuteResponse, nil
}

// SavePreview mirrors files into the backend preview root.
func (c *Client) SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error) {
	var resp schema.SavePreviewResponse
	if err := c.post(ctx, "/api/save-preview", req, &resp); err != nil {
		return schema.SavePreviewResponse{}, err
	}
	return resp, nil
}

// SyncFiles mirrors files into the backend workspace root.
func (c *Client) SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error) {
	var resp schema.SyncFilesResponse
	if err := c.post(ctx, "/api/sync-files", req, &resp); err != nil {
		return schema.SyncFilesResponse{}, err
	}
	return resp, nil
}

// Health reports whether the backend answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	log := pslog.Ctx(ctx).With("endpoint", endpoint)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("backend request failed", "err", err)
		return &ConnectError{Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	log.Debug("backend request done", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.Unmarshal(data, result); err != nil {
		return &RawReplyError{Body: string(data), Err: err}
	}
	return nil
}

func (c *Client) endpoint(endpoint string) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, endpoint)
	return u.String()
}
