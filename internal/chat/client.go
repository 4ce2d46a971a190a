// Package chat drives one agent conversation from the operator's side: a
// local transcript, relay calls over HTTP and user-facing error handling.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/agentdesk/internal/agent"
	"github.com/ashureev/agentdesk/internal/domain"
)

const maxErrorBody = 4 << 10

// RelayError is a non-2xx answer from the agentdesk server.
type RelayError struct {
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay error [%d]: %s", e.Status, e.Message)
}

// Client calls the agentdesk HTTP API with an operator token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Chat posts one user turn to the relay and returns the assistant text.
func (c *Client) Chat(ctx context.Context, req agent.ChatRequest) (string, error) {
	if req.Context == nil {
		req.Context = []domain.Turn{}
	}
	var resp agent.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/ai-agent-chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Evaluate scores a practice transcript.
func (c *Client) Evaluate(ctx context.Context, turns []domain.Turn) (domain.Evaluation, error) {
	var eval domain.Evaluation
	err := c.do(ctx, http.MethodPost, "/coach-evaluate", agent.EvaluateRequest{Messages: turns}, &eval)
	return eval, err
}

// CreateSession opens a chat session for the calling operator.
func (c *Client) CreateSession(ctx context.Context, agentType domain.AgentType, clientID *string) (string, error) {
	body := map[string]any{"agent_type": agentType, "client_id": clientID}
	var sess domain.ChatSession
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Do performs an authenticated JSON request against the API. in and out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.do(ctx, method, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(raw))
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &RelayError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
