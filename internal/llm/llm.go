// Package llm adapts an OpenAI-compatible text-generation backend into
// the task scoring interface. Each call is independent: the adapter has
// no internal state and no retry policy of its own.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"tcfwrite/internal/llm/prompts"
	"tcfwrite/internal/model"
)

// ErrMalformedResponse marks a backend reply that could not be parsed
// into the feedback shape. The adapter never retries; callers decide.
var ErrMalformedResponse = errors.New("malformed scoring response")

// UpstreamError is a non-success response from the scoring backend.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("scoring backend error %d: %s", e.Status, e.Body)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new scoring client.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Ping verifies the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("scoring backend health check: %w", err)
	}
	return nil
}

// Score grades one writing task. It builds the register-specific grading
// prompt, makes a single completion call, and parses the reply as the
// fixed AIFeedback shape. A failed upstream call yields *UpstreamError;
// an unparseable reply yields ErrMalformedResponse.
func (c *Client) Score(ctx context.Context, taskNumber int, content string) (*model.AIFeedback, error) {
	prompt, err := prompts.Build(taskNumber, content)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &UpstreamError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("scoring call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("scoring response", "task_number", taskNumber, "raw", raw)

	var fb model.AIFeedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fb.NCLCLevel == "" {
		return nil, fmt.Errorf("%w: missing nclc_level", ErrMalformedResponse)
	}

	return &fb, nil
}
