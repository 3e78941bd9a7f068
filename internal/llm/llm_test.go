package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbender/sprechtrainer/internal/model"
)

// fakeChatServer serves an OpenAI-compatible chat completion endpoint
// that always answers with the given message content.
func fakeChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": content},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestReply(t *testing.T) {
	srv := fakeChatServer(t, "  Wie heißen Sie?  ")
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	reply, err := c.Reply(context.Background(), "Du bist Prüfer.", []model.Turn{
		{Role: model.RoleAssistant, Text: "Guten Tag."},
		{Role: model.RoleUser, Text: "Hallo."},
	}, "Ich heiße Ali.")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "Wie heißen Sie?" {
		t.Errorf("reply = %q, want trimmed utterance", reply)
	}
}

func TestReplyEmptyUtterance(t *testing.T) {
	srv := fakeChatServer(t, "   ")
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	if _, err := c.Reply(context.Background(), "sys", nil, "Hallo"); err == nil {
		t.Fatal("expected error for empty utterance")
	}
}

func TestGradeParsesVerdict(t *testing.T) {
	verdict := `{
		"grade": "A2",
		"reasoning": "Einfache Sätze, verständlich.",
		"tips": ["Mehr Nebensätze üben"],
		"mistakes": [{"original": "ich gehen", "correction": "ich gehe", "explanation": "Konjugation"}]
	}`
	srv := fakeChatServer(t, verdict)
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	result, err := c.Grade(context.Background(), "Bewerte.", "USER: ich gehen\n")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Grade != model.GradeA2 {
		t.Errorf("grade = %q, want A2", result.Grade)
	}
	if len(result.Tips) != 1 || len(result.Mistakes) != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.Mistakes[0].Correction != "ich gehe" {
		t.Errorf("mistake = %+v", result.Mistakes[0])
	}
}

func TestGradeMalformedVerdict(t *testing.T) {
	srv := fakeChatServer(t, "Das war ganz gut, ungefähr A2.")
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	_, err := c.Grade(context.Background(), "Bewerte.", "USER: Hallo\n")
	if !errors.Is(err, ErrBadVerdict) {
		t.Fatalf("error = %v, want ErrBadVerdict", err)
	}
}

func TestGradeUnknownLevel(t *testing.T) {
	srv := fakeChatServer(t, `{"grade": "C2", "reasoning": "perfekt"}`)
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	if _, err := c.Grade(context.Background(), "Bewerte.", "USER: Hallo\n"); !errors.Is(err, ErrBadVerdict) {
		t.Fatalf("error = %v, want ErrBadVerdict", err)
	}
}

func TestGradeNormalizesVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Grade
	}{
		{"b1", model.GradeB1},
		{" A2 ", model.GradeA2},
		{"a1", model.GradeA1},
		{"unter a1", model.GradeBelowA1},
		{"Unter-A1", model.GradeBelowA1},
		{"below A1", model.GradeBelowA1},
		{"below-a1", model.GradeBelowA1},
	}
	for _, tt := range tests {
		if got := normalizeGrade(model.Grade(tt.raw)); got != tt.want {
			t.Errorf("normalizeGrade(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
