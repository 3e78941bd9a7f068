package exam

import (
	"context"
	"io"

	"github.com/mbender/sprechtrainer/internal/model"
)

// Dialogue produces examiner utterances and grading verdicts.
type Dialogue interface {
	// Reply returns the examiner's next utterance for the given system
	// instruction, prior history, and new user utterance.
	Reply(ctx context.Context, system string, history []model.Turn, userText string) (string, error)
	// Grade requests a structured verdict for the given payload
	// (a conversation transcript or a written text).
	Grade(ctx context.Context, system, payload string) (*model.GradingResult, error)
}

// Transcriber converts a recorded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip io.Reader, filename string) (string, error)
}

// Synthesizer renders an utterance as playable audio. Implementations
// are expected to fall back internally; synthesis is best-effort and
// never blocks a transition.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageSource resolves a topic keyword to an image URL.
type ImageSource interface {
	Search(ctx context.Context, topic string) (string, error)
}

// ResultSink persists completed exam results and serves the derived
// statistics. Append-only from this package's perspective.
type ResultSink interface {
	SaveResult(r model.ExamResult) (int64, error)
	Stats(userID int64) (model.UserStats, error)
}

// Deps bundles the external collaborators of a session.
type Deps struct {
	Dialogue    Dialogue
	Transcriber Transcriber
	Synth       Synthesizer
	Images      ImageSource
	Results     ResultSink
}
