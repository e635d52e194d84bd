package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// workflowTimeout bounds a blocking workflow run. The downstream automation
// may drive a full re-login attempt, so it is generous.
const workflowTimeout = 100 * time.Second

type WorkflowConfig struct {
	URL    string
	APIKey string
	// User labels the workflow invocation for the downstream service.
	User string
}

// WorkflowClient invokes the remediation workflow with the diagnostic image
// URL embedded in its query payload. One attempt per escalation; a timeout or
// non-200 response is reported, never retried.
type WorkflowClient struct {
	cfg        WorkflowConfig
	httpClient *http.Client
}

func NewWorkflowClient(cfg WorkflowConfig) *WorkflowClient {
	return &WorkflowClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: workflowTimeout},
	}
}

type workflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

func (c *WorkflowClient) Trigger(ctx context.Context, imageURL string) error {
	user := c.cfg.User
	if user == "" {
		user = "autopub"
	}
	body, err := json.Marshal(workflowRequest{
		Inputs:       map[string]string{"query": "img_url:" + imageURL},
		ResponseMode: "blocking",
		User:         user,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workflow request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workflow status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}
