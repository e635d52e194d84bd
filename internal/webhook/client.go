// Package webhook is a minimal client for the operator notification backend.
//
// The backend exposes four endpoints: fetch-receivers (receiver id -> load
// metric), send-text, send-image-url, and send-image-file (multipart). Every
// call carries the same fixed basic-auth credential pair.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	base       string
	username   string
	password   string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:       cfg.BaseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Receivers returns the receiver -> load metric mapping.
func (c *Client) Receivers(ctx context.Context) (map[string]int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/get_receivers", nil, "")
	if err != nil {
		return nil, err
	}
	var out map[string]int
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type textMessage struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (c *Client) SendText(ctx context.Context, receiver, text string) error {
	body, err := json.Marshal(textMessage{UserID: receiver, Message: text})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/send_text_message", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type imageURLMessage struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
}

func (c *Client) SendImageURL(ctx context.Context, receiver, imageURL string) error {
	body, err := json.Marshal(imageURLMessage{UserID: receiver, ImageURL: imageURL})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/send_image_url", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SendImageFile uploads a local image as multipart form data. The receiver id
// travels as a query parameter, matching the backend's contract.
func (c *Client) SendImageFile(ctx context.Context, receiver, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	endpoint := "/send_image_file?" + url.Values{"user_id": {receiver}}.Encode()
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("webhook %s: read response: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook %s: status %d: %s", req.URL.Path, resp.StatusCode, trim(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("webhook %s: decode response: %w", req.URL.Path, err)
		}
	}
	return nil
}

func trim(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
