package exam

import "errors"

var (
	// ErrWrongStep means the transition is not valid in the current step.
	ErrWrongStep = errors.New("transition not valid in current step")
	// ErrWrongModule means the transition does not apply to the active
	// module.
	ErrWrongModule = errors.New("transition not valid for active module")
	// ErrUnknownModule means the requested module name is not one of
	// the four exam parts.
	ErrUnknownModule = errors.New("unknown exam module")
	// ErrInputTooShort means the written submission is below the
	// minimum length. Recovered locally; no grading call is made.
	ErrInputTooShort = errors.New("written input below minimum length")
	// ErrProvider wraps a transcription or dialogue provider failure.
	// The session stays in the exam step; the call is retryable.
	ErrProvider = errors.New("provider unavailable")
	// ErrGrading wraps a grading failure (provider error or malformed
	// verdict). Retryable via RetryGrading.
	ErrGrading = errors.New("grading failed")
	// ErrNothingToGrade means RetryGrading was called before any
	// grading attempt was triggered.
	ErrNothingToGrade = errors.New("no grading pending")
	// ErrSuperseded means an async completion arrived after the session
	// was stopped or restarted; its result was discarded.
	ErrSuperseded = errors.New("session superseded, result discarded")
)
