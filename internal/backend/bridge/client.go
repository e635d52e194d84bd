// Package bridge talks to the browser-automation sidecar that performs the
// actual login and publish flows. The sidecar is an opaque collaborator; this
// client only moves validated requests and structured results across HTTP.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"autopub/internal/backend"
	"autopub/pkg/logx"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// BaseURL of the automation sidecar, e.g. http://127.0.0.1:8500
	BaseURL string
	// SetupTimeout bounds interactive login flows. Zero means no client
	// timeout; the request context still applies.
	SetupTimeout time.Duration
}

type Client struct {
	base string
	log  logx.Logger

	httpClient *http.Client
	// publish runs can take minutes (upload + review queue), so publish uses
	// a client without its own timeout and relies on ctx.
	longClient *http.Client
}

func New(cfg Config, log logx.Logger) *Client {
	timeout := cfg.SetupTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:       cfg.BaseURL,
		log:        log,
		httpClient: &http.Client{Timeout: timeout},
		longClient: &http.Client{},
	}
}

type setupRequest struct {
	Account     string `json:"account"`
	SessionPath string `json:"session_path"`
	Interactive bool   `json:"interactive"`
	Phone       string `json:"phone,omitempty"`
}

type publishRequest struct {
	SessionPath string   `json:"session_path"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Files       []string `json:"files"`
	PublishAt   string   `json:"publish_at,omitempty"` // RFC3339; empty = now
	Location    string   `json:"location,omitempty"`
	Category    string   `json:"category,omitempty"`
}

type bridgeResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Setup asks the sidecar to load (or interactively create) the session
// artifact referenced by req.SessionPath.
func (c *Client) Setup(ctx context.Context, platformID string, req setupRequest) error {
	return c.post(ctx, c.httpClient, "/"+platformID+"/setup", req)
}

// Publish runs a publish flow to completion; it blocks until the sidecar
// resolves the run.
func (c *Client) Publish(ctx context.Context, platformID string, req publishRequest) error {
	return c.post(ctx, c.longClient, "/"+platformID+"/publish", req)
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("sidecar %s: read response: %w", path, err)
	}

	var br bridgeResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return fmt.Errorf("sidecar %s: status %d: %s", path, resp.StatusCode, truncate(data, 200))
	}
	if resp.StatusCode == http.StatusOK && br.OK {
		return nil
	}

	detail := br.Error
	if detail == "" {
		detail = fmt.Sprintf("status %d", resp.StatusCode)
	}
	if br.ErrorCode == "session_expired" {
		return fmt.Errorf("%s: %w", detail, backend.ErrSessionExpired)
	}
	return fmt.Errorf("sidecar %s: %s", path, detail)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
