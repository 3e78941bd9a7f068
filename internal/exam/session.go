package exam

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mbender/sprechtrainer/internal/llm/prompts"
	"github.com/mbender/sprechtrainer/internal/model"
)

// Config holds the tunable constants of the state machine. Caps and
// thresholds are configuration, never computed.
type Config struct {
	IntroTurns         int
	PictureTurns       int
	PlanningTurns      int
	MinTranscriptRunes int
	MinWritingRunes    int
	WritingTime        time.Duration
}

// DefaultConfig returns the standard DTZ practice parameters.
func DefaultConfig() Config {
	return Config{
		IntroTurns:         2,
		PictureTurns:       2,
		PlanningTurns:      5,
		MinTranscriptRunes: 2,
		MinWritingRunes:    50,
		WritingTime:        30 * time.Minute,
	}
}

// Content is the module-specific payload of a running exam. Exactly one
// variant is active at a time, keyed by the module.
type Content interface {
	module() model.Module
	topic() string
}

// IntroContent is the (empty) payload of the self-introduction module.
type IntroContent struct{}

func (IntroContent) module() model.Module { return model.ModuleIntro }
func (IntroContent) topic() string        { return "Vorstellung" }

// PictureContent is the payload of the picture-description module.
type PictureContent struct {
	Topic    string
	ImageURL string
	Fallback bool
	// Note carries a short provider diagnostic when the fallback set
	// was used. Display-only, never blocking.
	Note string
}

func (PictureContent) module() model.Module { return model.ModulePicture }
func (c PictureContent) topic() string      { return c.Topic }

// PlanningContent is the payload of the joint-planning module.
type PlanningContent struct {
	Scenario model.PlanningScenario
}

func (PlanningContent) module() model.Module { return model.ModulePlanning }
func (c PlanningContent) topic() string      { return c.Scenario.Title }

// WritingContent is the payload of the writing module.
type WritingContent struct {
	Task      model.WritingTask
	Deadline  time.Time
	Input     string
	Submitted bool
}

func (WritingContent) module() model.Module { return model.ModuleWriting }
func (c WritingContent) topic() string      { return c.Task.Title }

// Highlight is one located mistake span in a written submission.
type Highlight struct {
	Start   int `json:"start"`
	End     int `json:"end"`
	Mistake int `json:"mistake"`
}

// State is a snapshot of the session for the presentation layer.
type State struct {
	ID           string                `json:"id"`
	Step         model.Step            `json:"step"`
	Module       model.Module          `json:"module"`
	History      []model.Turn          `json:"history"`
	TurnCount    int                   `json:"turnCount"`
	Topic        string                `json:"topic,omitempty"`
	CurrentImage string                `json:"currentImage,omitempty"`
	ImageNote    string                `json:"imageNote,omitempty"`
	PlanningTask string                `json:"planningTask,omitempty"`
	WritingTask  string                `json:"writingTask,omitempty"`
	WritingInput string                `json:"writingInput,omitempty"`
	// TimeLeft is nil outside the writing exam and floored at zero once
	// the deadline has passed.
	TimeLeft     *int                  `json:"timeLeft,omitempty"`
	Grading      *model.GradingResult  `json:"grading,omitempty"`
	Highlights   []Highlight           `json:"highlights,omitempty"`
	PersistError string                `json:"persistError,omitempty"`
	Stats        *model.UserStats      `json:"stats,omitempty"`
}

type pendingGrading struct {
	system  string
	payload string
}

// Session is the exam state machine for one identity. All transitions
// take the session lock, and provider calls run outside it guarded by a
// generation counter: a completion whose captured generation no longer
// matches the session is discarded.
type Session struct {
	mu       sync.Mutex
	id       string
	identity model.Identity
	cfg      Config
	deps     Deps

	gen       uint64
	step      model.Step
	module    model.Module
	history   []model.Turn
	turnCount int
	content   Content
	grading   *model.GradingResult
	pending   *pendingGrading
	startedAt time.Time

	persistErr string
	stats      *model.UserStats
}

// New creates a session in the menu step for the given identity.
func New(identity model.Identity, cfg Config, deps Deps) *Session {
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		cfg:      cfg,
		deps:     deps,
		step:     model.StepMenu,
		module:   model.ModuleNone,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := State{
		ID:           s.id,
		Step:         s.step,
		Module:       s.module,
		History:      append([]model.Turn(nil), s.history...),
		TurnCount:    s.turnCount,
		Grading:      s.grading,
		PersistError: s.persistErr,
		Stats:        s.stats,
	}
	switch c := s.content.(type) {
	case PictureContent:
		st.Topic = c.Topic
		st.CurrentImage = c.ImageURL
		st.ImageNote = c.Note
	case PlanningContent:
		st.Topic = c.Scenario.Title
		st.PlanningTask = c.Scenario.Title
	case WritingContent:
		st.Topic = c.Task.Title
		st.WritingTask = c.Task.Prompt
		st.WritingInput = c.Input
		left := int(time.Until(c.Deadline).Seconds())
		if left < 0 {
			left = 0
		}
		st.TimeLeft = &left
		if s.grading != nil {
			st.Highlights = Highlights(c.Input, s.grading.Mistakes)
		}
	case IntroContent:
		st.Topic = c.topic()
	}
	return st
}

// StartModule begins an exam for the given module. Valid only from the
// menu step. It selects the module content, emits the initial examiner
// utterance, and returns the new state plus best-effort synthesized
// audio for that utterance.
func (s *Session) StartModule(ctx context.Context, m model.Module) (State, []byte, error) {
	if !m.Valid() {
		return s.State(), nil, ErrUnknownModule
	}

	s.mu.Lock()
	if s.step != model.StepMenu {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil, ErrWrongStep
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	var content Content
	switch m {
	case model.ModuleIntro:
		content = IntroContent{}
	case model.ModulePicture:
		content = s.resolvePicture(ctx)
	case model.ModulePlanning:
		content = PlanningContent{Scenario: planningScenarios[rand.Intn(len(planningScenarios))]}
	case model.ModuleWriting:
		content = WritingContent{
			Task:     writingTasks[rand.Intn(len(writingTasks))],
			Deadline: time.Now().Add(s.cfg.WritingTime),
		}
	}

	greeting := greetingFor(content)

	s.mu.Lock()
	if s.gen != gen {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil, ErrSuperseded
	}
	s.step = model.StepExam
	s.module = m
	s.content = content
	s.history = nil
	s.turnCount = 0
	s.grading = nil
	s.pending = nil
	s.persistErr = ""
	s.startedAt = time.Now()
	if m.Oral() {
		s.history = []model.Turn{{Role: model.RoleAssistant, Text: greeting}}
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	var audio []byte
	if m.Oral() {
		audio = s.speak(ctx, gen, greeting)
	}
	return st, audio, nil
}

// resolvePicture picks a topic and asks the image provider for a
// matching photo. Any provider failure silently falls back to the
// static image set, keeping a short diagnostic for display.
func (s *Session) resolvePicture(ctx context.Context) PictureContent {
	i := rand.Intn(len(pictureTopics))
	c := PictureContent{Topic: pictureTopics[i]}
	url, err := s.deps.Images.Search(ctx, c.Topic)
	if err != nil {
		slog.Warn("image provider failed, using fallback set", "topic", c.Topic, "error", err)
		c.ImageURL = fallbackImages[i]
		c.Fallback = true
		c.Note = err.Error()
		return c
	}
	c.ImageURL = url
	return c
}

func greetingFor(c Content) string {
	switch c := c.(type) {
	case PictureContent:
		return pictureGreeting
	case PlanningContent:
		return planningGreeting(c.Scenario)
	default:
		return introGreeting
	}
}

// SubmitAudioTurn processes one recorded user clip during an oral exam.
// Empty or too-short transcriptions void the turn: a placeholder user
// turn and a fixed re-prompt are appended and the turn count does not
// advance.
func (s *Session) SubmitAudioTurn(ctx context.Context, clip io.Reader, filename string) (State, []byte, error) {
	s.mu.Lock()
	if s.step != model.StepExam {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil, ErrWrongStep
	}
	if !s.module.Oral() {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil, ErrWrongModule
	}
	gen := s.gen
	module := s.module
	turnCount := s.turnCount
	history := append([]model.Turn(nil), s.history...)
	var scenario *model.PlanningScenario
	if pc, ok := s.content.(PlanningContent); ok {
		sc := pc.Scenario
		scenario = &sc
	}
	s.mu.Unlock()

	text, err := s.deps.Transcriber.Transcribe(ctx, clip, filename)
	if err != nil {
		return s.guarded(gen, func() {}), nil, fmt.Errorf("%w: transcription: %v", ErrProvider, err)
	}
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < s.cfg.MinTranscriptRunes {
		st := s.guarded(gen, func() {
			s.history = append(s.history,
				model.Turn{Role: model.RoleUser, Text: placeholderTurn},
				model.Turn{Role: model.RoleAssistant, Text: rePrompt},
			)
		})
		audio := s.speak(ctx, gen, rePrompt)
		return st, audio, nil
	}

	system, err := prompts.Oral(module, turnCount, scenario)
	if err != nil {
		return s.State(), nil, err
	}
	reply, err := s.deps.Dialogue.Reply(ctx, system, history, text)
	if err != nil {
		return s.guarded(gen, func() {}), nil, fmt.Errorf("%w: dialogue: %v", ErrProvider, err)
	}

	terminal := s.isTerminal(module, turnCount, reply)

	var st State
	if terminal {
		gradeSystem, err := prompts.GradeOral(module)
		if err != nil {
			return s.State(), nil, err
		}
		var payload string
		st = s.guarded(gen, func() {
			s.history = append(s.history,
				model.Turn{Role: model.RoleUser, Text: text},
				model.Turn{Role: model.RoleAssistant, Text: reply},
			)
			payload = formatTranscript(s.history)
			s.pending = &pendingGrading{system: gradeSystem, payload: payload}
		})
		if s.staleGen(gen) {
			return st, nil, ErrSuperseded
		}
		audio := s.speak(ctx, gen, reply)
		st, err = s.runGrading(ctx, gen)
		return st, audio, err
	}

	st = s.guarded(gen, func() {
		s.history = append(s.history,
			model.Turn{Role: model.RoleUser, Text: text},
			model.Turn{Role: model.RoleAssistant, Text: reply},
		)
		s.turnCount++
	})
	if s.staleGen(gen) {
		return st, nil, ErrSuperseded
	}
	audio := s.speak(ctx, gen, reply)
	return st, audio, nil
}

// isTerminal decides whether the exchange at the given turn index ends
// the module. Planning additionally ends when the examiner says
// goodbye.
func (s *Session) isTerminal(m model.Module, turnCount int, reply string) bool {
	switch m {
	case model.ModuleIntro:
		return turnCount >= s.cfg.IntroTurns
	case model.ModulePicture:
		return turnCount >= s.cfg.PictureTurns
	case model.ModulePlanning:
		return turnCount >= s.cfg.PlanningTurns || containsClosing(reply)
	}
	return false
}

func containsClosing(reply string) bool {
	lower := strings.ToLower(reply)
	for _, m := range closingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// SubmitWriting grades a written submission. Valid only during the
// writing exam; the text must meet the minimum length. The countdown
// reaching zero does not auto-submit: a late submission is still
// accepted and the overrun shows up in the persisted duration.
func (s *Session) SubmitWriting(ctx context.Context, text string) (State, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.step != model.StepExam {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrWrongStep
	}
	wc, ok := s.content.(WritingContent)
	if !ok {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrWrongModule
	}
	if utf8.RuneCountInString(text) < s.cfg.MinWritingRunes {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrInputTooShort
	}
	gen := s.gen
	system, err := prompts.GradeWriting(wc.Task)
	if err != nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), err
	}
	wc.Input = text
	wc.Submitted = true
	s.content = wc
	s.pending = &pendingGrading{system: system, payload: text}
	s.mu.Unlock()

	return s.runGrading(ctx, gen)
}

// RetryGrading re-invokes grading after a previous attempt failed.
func (s *Session) RetryGrading(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.step != model.StepExam || s.pending == nil {
		defer s.mu.Unlock()
		if s.pending == nil {
			return s.snapshotLocked(), ErrNothingToGrade
		}
		return s.snapshotLocked(), ErrWrongStep
	}
	gen := s.gen
	s.mu.Unlock()
	return s.runGrading(ctx, gen)
}

// runGrading calls the dialogue provider for a verdict and, on success,
// sets the grading exactly once, moves to the result step, and kicks
// off async persistence for non-guest identities.
func (s *Session) runGrading(ctx context.Context, gen uint64) (State, error) {
	s.mu.Lock()
	if s.gen != gen {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrSuperseded
	}
	if s.pending == nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrNothingToGrade
	}
	pending := *s.pending
	s.mu.Unlock()

	verdict, err := s.deps.Dialogue.Grade(ctx, pending.system, pending.payload)
	if err != nil {
		return s.guarded(gen, func() {}), fmt.Errorf("%w: %v", ErrGrading, err)
	}

	var (
		result  model.ExamResult
		applied bool
	)
	st := s.guarded(gen, func() {
		if s.grading != nil {
			return
		}
		applied = true
		s.grading = verdict
		s.step = model.StepResult
		s.pending = nil
		result = model.ExamResult{
			UserID:          s.identity.UserID,
			Module:          s.module,
			Topic:           s.content.topic(),
			Grade:           verdict.Grade,
			DurationSeconds: int(time.Since(s.startedAt).Seconds()),
			Transcript:      pending.payload,
			Feedback:        *verdict,
		}
	})
	if s.staleGen(gen) {
		return st, ErrSuperseded
	}

	// Only the call that applied the verdict persists; a concurrent
	// loser must not write a second (empty) result.
	if applied {
		go s.persist(gen, result)
	}
	return st, nil
}

// persist writes the result to the sink and refreshes the statistics.
// Guest sessions never reach the sink. A persistence failure is
// surfaced on the state but never blocks showing the result.
func (s *Session) persist(gen uint64, r model.ExamResult) {
	if s.identity.Guest {
		return
	}
	if _, err := s.deps.Results.SaveResult(r); err != nil {
		slog.Error("failed to persist exam result", "module", r.Module, "error", err)
		s.guarded(gen, func() { s.persistErr = err.Error() })
		return
	}
	stats, err := s.deps.Results.Stats(s.identity.UserID)
	if err != nil {
		slog.Warn("failed to refresh stats", "error", err)
		return
	}
	s.guarded(gen, func() { s.stats = &stats })
}

// Stop cancels the running exam and returns the session to the menu.
// Any in-flight provider completion for the old exam is discarded.
func (s *Session) Stop() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.step = model.StepMenu
	s.module = model.ModuleNone
	s.history = nil
	s.turnCount = 0
	s.content = nil
	s.grading = nil
	s.pending = nil
	s.persistErr = ""
	return s.snapshotLocked()
}

// speak synthesizes an utterance, discarding the audio if the session
// moved on while synthesis was in flight. Best-effort: failures are
// logged, never returned.
func (s *Session) speak(ctx context.Context, gen uint64, text string) []byte {
	if s.deps.Synth == nil {
		return nil
	}
	audio, err := s.deps.Synth.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("speech synthesis failed", "error", err)
		return nil
	}
	if s.staleGen(gen) {
		return nil
	}
	return audio
}

// guarded applies fn under the lock only if the generation still
// matches, then returns a snapshot either way.
func (s *Session) guarded(gen uint64, fn func()) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		fn()
	}
	return s.snapshotLocked()
}

func (s *Session) staleGen(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

func formatTranscript(history []model.Turn) string {
	var sb strings.Builder
	for _, t := range history {
		sb.WriteString(strings.ToUpper(string(t.Role)))
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
