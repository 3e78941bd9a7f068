package model

import (
	"context"
	"time"
)

// Module identifies one of the four DTZ practice parts.
type Module string

const (
	// ModuleIntro is Teil 1: Sich vorstellen.
	ModuleIntro Module = "vorstellung"
	// ModulePicture is Teil 2: Bildbeschreibung.
	ModulePicture Module = "bild"
	// ModulePlanning is Teil 3: Gemeinsam planen.
	ModulePlanning Module = "planung"
	// ModuleWriting is the written part (Brief schreiben).
	ModuleWriting Module = "schreiben"
	// ModuleNone means no module is active.
	ModuleNone Module = ""
)

// Oral reports whether the module is a spoken exam part.
func (m Module) Oral() bool {
	return m == ModuleIntro || m == ModulePicture || m == ModulePlanning
}

// Valid reports whether m names a startable module.
func (m Module) Valid() bool {
	return m.Oral() || m == ModuleWriting
}

// Step is the phase of a practice session. Landing and authentication
// screens live in the frontend before a session exists, so the server
// only ever reports these three.
type Step string

const (
	StepMenu   Step = "menu"
	StepExam   Step = "exam"
	StepResult Step = "result"
)

// Role is a chat turn role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in an exam conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Grade is a CEFR-style level verdict.
type Grade string

const (
	GradeB1      Grade = "B1"
	GradeA2      Grade = "A2"
	GradeA1      Grade = "A1"
	GradeBelowA1 Grade = "Unter A1"
)

// Valid reports whether g is one of the known verdict levels.
func (g Grade) Valid() bool {
	switch g {
	case GradeB1, GradeA2, GradeA1, GradeBelowA1:
		return true
	}
	return false
}

// Mistake is one itemized correction in a grading verdict.
type Mistake struct {
	Original    string `json:"original"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// GradingResult is the structured verdict produced at module completion.
// Immutable after creation.
type GradingResult struct {
	Grade     Grade     `json:"grade"`
	Reasoning string    `json:"reasoning"`
	Tips      []string  `json:"tips"`
	Mistakes  []Mistake `json:"mistakes"`
}

// ExamResult is one persisted module attempt.
type ExamResult struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	Module          Module        `json:"module"`
	Topic           string        `json:"topic"`
	Grade           Grade         `json:"grade"`
	DurationSeconds int           `json:"duration_seconds"`
	Transcript      string        `json:"transcript"`
	Feedback        GradingResult `json:"feedback"`
	CreatedAt       time.Time     `json:"created_at"`
}

// UserStats is the read-only aggregate shown on the menu screen.
type UserStats struct {
	TotalExams   int    `json:"totalExams"`
	LastGrade    string `json:"lastGrade"`
	ModulesTaken int    `json:"modulesTaken"`
}

// PlanningScenario is one "gemeinsam planen" setting with its discussion
// points.
type PlanningScenario struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// WritingTask is one written-part prompt with the points the letter must
// cover.
type WritingTask struct {
	Title  string   `json:"title"`
	Prompt string   `json:"prompt"`
	Points []string `json:"points"`
}

// UserRole represents a user's access level.
type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleAdmin   UserRole = "admin"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents a login session token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Identity is the resolved caller identity for a request. Guest
// identities are never persisted.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
	Guest       bool
}

// Key returns a stable registry key for the identity.
func (id Identity) Key() string {
	if id.Guest {
		return "g:" + id.Username
	}
	return "u:" + id.Username
}

type identityCtxKey struct{}

// ContextWithIdentity stores the caller identity in the request context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}
