// Package speech integrates the transcription and synthesis providers.
// Synthesis is a chain: the hosted provider first, then an on-device
// fallback engine, so a provider outage never silences the examiner.
package speech

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber converts recorded clips to text via the Whisper API.
type Transcriber struct {
	api      *openai.Client
	model    string
	language string
}

// NewTranscriber creates a transcriber for German exam speech.
func NewTranscriber(baseURL, apiKey string) *Transcriber {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Transcriber{
		api:      openai.NewClientWithConfig(config),
		model:    openai.Whisper1,
		language: "de",
	}
}

// Transcribe returns the best-effort text of the clip. An empty
// transcript is not an error here; the caller applies its own
// short-input policy.
func (t *Transcriber) Transcribe(ctx context.Context, clip io.Reader, filename string) (string, error) {
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   clip,
		FilePath: filename,
		Language: t.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription API call: %w", err)
	}
	return resp.Text, nil
}
