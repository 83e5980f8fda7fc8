// Package oracle is the chat-completion client behind the oracle tree
// strategy. It speaks the OpenAI-compatible JSON shape that OpenRouter and
// most self-hosted gateways accept.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/udisondev/spelllearn/internal/config"
	"github.com/udisondev/spelllearn/internal/host"
)

const defaultTimeout = 60 * time.Second

// Client issues blocking chat completions. Use Go for the fire-and-forget
// form that reports back on the game thread.
type Client struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
}

// NewClient builds a client from the unified config block.
func NewClient(cfg config.Oracle) *Client {
	return &Client{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether the client can make requests.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.apiKey != "" && c.model != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one system+user conversation and returns the model's text.
// The request blocks up to the client timeout; cancel through ctx.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("oracle is not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned %s: %s", resp.Status, truncate(string(data), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("oracle error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	slog.Debug("oracle completion", "model", c.model, "elapsed", time.Since(started), "chars", len(content))
	return content, nil
}

// Go runs Complete on its own goroutine and posts the outcome to the game
// thread. The engine's tree state stays untouched until done runs.
func (c *Client) Go(ctx context.Context, queue host.TaskQueue, system, user string, done func(content string, err error)) {
	go func() {
		content, err := c.Complete(ctx, system, user)
		queue.Post(func() { done(content, err) })
	}()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
