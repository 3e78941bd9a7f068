// Package llm wraps the OpenAI-compatible chat API used as the
// dialogue provider: examiner turns and structured grading verdicts.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mbender/sprechtrainer/internal/model"
)

// ErrBadVerdict marks a grading response that could not be parsed into
// a structured verdict. Grading is retryable after this error.
var ErrBadVerdict = errors.New("malformed grading verdict")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new dialogue client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Reply sends the conversation to the LLM and returns the examiner's
// next utterance.
func (c *Client) Reply(ctx context.Context, system string, history []model.Turn, userText string) (string, error) {
	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("LLM returned an empty utterance")
	}
	return reply, nil
}

// Grade requests a structured verdict for the payload and parses it.
func (c *Client) Grade(ctx context.Context, system, payload string) (*model.GradingResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: payload},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for grading")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("grading response", "raw", raw)

	var result model.GradingResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", ErrBadVerdict, err, raw)
	}
	result.Grade = normalizeGrade(result.Grade)
	if !result.Grade.Valid() {
		return nil, fmt.Errorf("%w: unknown grade %q (raw: %s)", ErrBadVerdict, result.Grade, raw)
	}
	return &result, nil
}

// normalizeGrade maps case and spelling variants onto the canonical
// grade values.
func normalizeGrade(g model.Grade) model.Grade {
	switch strings.ToLower(strings.TrimSpace(string(g))) {
	case "b1":
		return model.GradeB1
	case "a2":
		return model.GradeA2
	case "a1":
		return model.GradeA1
	case "unter a1", "unter-a1", "below a1", "below-a1":
		return model.GradeBelowA1
	}
	return g
}
