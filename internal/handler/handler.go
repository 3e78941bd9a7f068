// Package handler exposes the practice application as a JSON API. The
// browser frontend owns all presentation; the server owns exam state,
// providers, and persistence.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbender/sprechtrainer/internal/exam"
	"github.com/mbender/sprechtrainer/internal/model"
	"github.com/mbender/sprechtrainer/internal/store"
)

// Config holds handler-level settings.
type Config struct {
	SecureCookies bool
	Exam          exam.Config
}

// sessionIdleTTL is how long an untouched practice session survives in
// the registry. Long enough to outlive the writing countdown; abandoned
// guest sessions get reclaimed instead of accumulating forever.
const sessionIdleTTL = 2 * time.Hour

type sessionEntry struct {
	session  *exam.Session
	lastSeen time.Time
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	deps   exam.Deps
	config Config

	// One active practice session per identity. Guests get their own
	// entries keyed by their cookie ID.
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// New creates a new Handler.
func New(s *store.Store, deps exam.Deps, cfg Config) *Handler {
	return &Handler{
		store:    s,
		deps:     deps,
		config:   cfg,
		sessions: make(map[string]*sessionEntry),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Post("/api/auth/signup", h.handleSignup)
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/guest", h.handleGuest)
	r.Post("/api/auth/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireIdentity)
		r.Get("/api/me", h.handleMe)
		r.Get("/api/results", h.handleResults)
		r.Get("/api/exam", h.handleExamState)
		r.Post("/api/exam/start", h.handleStartModule)
		r.Post("/api/exam/turn", h.handleAudioTurn)
		r.Post("/api/exam/writing", h.handleWriting)
		r.Post("/api/exam/grade", h.handleRetryGrading)
		r.Post("/api/exam/stop", h.handleStop)
	})
}

// session returns the practice session for the identity, creating it
// on first use. Each lookup also sweeps out sessions idle past the TTL.
func (h *Handler) session(id model.Identity) *exam.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for key, e := range h.sessions {
		if now.Sub(e.lastSeen) > sessionIdleTTL {
			delete(h.sessions, key)
		}
	}

	key := id.Key()
	if e, ok := h.sessions[key]; ok {
		e.lastSeen = now
		return e.session
	}
	e := &sessionEntry{session: exam.New(id, h.config.Exam, h.deps), lastSeen: now}
	h.sessions[key] = e
	return e.session
}

// dropSession removes the identity's session on logout.
func (h *Handler) dropSession(id model.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id.Key())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
