package speech

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"
)

type stubSynth struct {
	audio []byte
	err   error
	calls int
}

func (s *stubSynth) Synthesize(context.Context, string) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func TestChainPrimaryWins(t *testing.T) {
	primary := &stubSynth{audio: []byte("hosted")}
	fallback := &stubSynth{audio: []byte("local")}
	c := NewChain(primary, fallback)

	audio, err := c.Synthesize(context.Background(), "Guten Tag")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "hosted" {
		t.Errorf("audio = %q, want hosted output", audio)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestChainFallsBack(t *testing.T) {
	primary := &stubSynth{err: errors.New("quota exceeded")}
	fallback := &stubSynth{audio: []byte("local")}
	c := NewChain(primary, fallback)

	audio, err := c.Synthesize(context.Background(), "Guten Tag")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "local" {
		t.Errorf("audio = %q, want fallback output", audio)
	}
}

func TestChainBothFail(t *testing.T) {
	primaryErr := errors.New("quota exceeded")
	c := NewChain(&stubSynth{err: primaryErr}, &stubSynth{err: errors.New("no engine")})

	if _, err := c.Synthesize(context.Background(), "Guten Tag"); !errors.Is(err, primaryErr) {
		t.Errorf("error = %v, want to wrap the primary error", err)
	}
}

func TestChainNilFallback(t *testing.T) {
	primaryErr := errors.New("quota exceeded")
	c := NewChain(&stubSynth{err: primaryErr}, nil)

	if _, err := c.Synthesize(context.Background(), "Guten Tag"); !errors.Is(err, primaryErr) {
		t.Errorf("error = %v, want primary error", err)
	}
}

func TestCommandSynthesizerVoiceMatching(t *testing.T) {
	voices := []LocalVoice{
		{Name: "en-us", Lang: language.AmericanEnglish},
		{Name: "de", Lang: language.German},
		{Name: "ru", Lang: language.Russian},
	}

	tests := []struct {
		want  language.Tag
		voice string
	}{
		{language.German, "de"},
		{language.MustParse("de-AT"), "de"},
		{language.Russian, "ru"},
	}
	for _, tt := range tests {
		s := NewCommandSynthesizer("espeak-ng", voices, tt.want)
		if s.voice != tt.voice {
			t.Errorf("voice for %v = %q, want %q", tt.want, s.voice, tt.voice)
		}
	}
}

func TestCommandSynthesizerNoVoices(t *testing.T) {
	s := NewCommandSynthesizer("espeak-ng", nil, language.German)
	if s.voice != "" {
		t.Errorf("voice = %q, want empty", s.voice)
	}
}
