package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
)

// Synthesizer renders text as playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynthesizer speaks through the hosted TTS API.
type OpenAISynthesizer struct {
	api   *openai.Client
	model openai.SpeechModel
	voice openai.SpeechVoice
}

// NewOpenAISynthesizer creates the hosted synthesizer. An empty voice
// selects alloy.
func NewOpenAISynthesizer(baseURL, apiKey, voice string) *OpenAISynthesizer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	v := openai.SpeechVoice(voice)
	if v == "" {
		v = openai.VoiceAlloy
	}
	return &OpenAISynthesizer{
		api:   openai.NewClientWithConfig(config),
		model: openai.TTSModel1,
		voice: v,
	}
}

// Synthesize returns MP3 audio for the utterance.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech API call: %w", err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return audio, nil
}

// LocalVoice is one voice of the on-device engine.
type LocalVoice struct {
	Name string
	Lang language.Tag
}

// CommandSynthesizer shells out to a local TTS engine (espeak-ng
// style: -v VOICE --stdout TEXT). It is the fallback when the hosted
// provider is unavailable.
type CommandSynthesizer struct {
	command string
	voice   string
}

// NewCommandSynthesizer picks the voice best matching the wanted
// language tag from the engine's voice list.
func NewCommandSynthesizer(command string, voices []LocalVoice, want language.Tag) *CommandSynthesizer {
	voice := ""
	if len(voices) > 0 {
		tags := make([]language.Tag, len(voices))
		for i, v := range voices {
			tags[i] = v.Lang
		}
		_, idx, _ := language.NewMatcher(tags).Match(want)
		voice = voices[idx].Name
	}
	return &CommandSynthesizer{command: command, voice: voice}
}

// Synthesize runs the local engine and returns its audio output.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	args := []string{"--stdout"}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, text)
	out, err := exec.CommandContext(ctx, s.command, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("local synthesis (%s): %w", s.command, err)
	}
	return out, nil
}

// Chain tries the primary synthesizer and falls back silently. Only
// when both fail does the caller see an error, and even then the exam
// transition proceeds without audio.
type Chain struct {
	primary  Synthesizer
	fallback Synthesizer
}

// NewChain builds a synthesis chain. The fallback may be nil.
func NewChain(primary, fallback Synthesizer) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Synthesize implements Synthesizer.
func (c *Chain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audio, err := c.primary.Synthesize(ctx, text)
	if err == nil {
		return audio, nil
	}
	if c.fallback == nil {
		return nil, err
	}
	slog.Warn("primary synthesis failed, using local fallback", "error", err)
	audio, ferr := c.fallback.Synthesize(ctx, text)
	if ferr != nil {
		return nil, fmt.Errorf("synthesis failed (fallback: %v): %w", ferr, err)
	}
	return audio, nil
}
