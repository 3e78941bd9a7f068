package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mbender/sprechtrainer/internal/exam"
	appI18n "github.com/mbender/sprechtrainer/internal/i18n"
	"github.com/mbender/sprechtrainer/internal/model"
)

// maxClipBytes bounds one uploaded recording (2 MB covers well over a
// minute of compressed speech).
const maxClipBytes = 2 << 20

// examResponse is the envelope for every exam transition. Audio is the
// synthesized examiner utterance, base64 in JSON, absent when synthesis
// failed or does not apply.
type examResponse struct {
	State exam.State `json:"state"`
	Audio []byte     `json:"audio,omitempty"`
}

func (h *Handler) handleExamState(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	st := h.session(id).State()

	// The menu aggregate is lazy: computed here for registered users
	// until the session has refreshed it itself after a result.
	if st.Stats == nil && !id.Guest {
		stats, err := h.store.Stats(id.UserID)
		if err != nil {
			slog.Warn("failed to load stats", "error", err)
		} else {
			st.Stats = &stats
		}
	}
	writeJSON(w, http.StatusOK, examResponse{State: st})
}

// handleResults returns the caller's attempt history. Guests have no
// history by definition.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	if id.Guest {
		writeJSON(w, http.StatusOK, []model.ExamResult{})
		return
	}
	results, err := h.store.ListResults(id.UserID)
	if err != nil {
		slog.Error("failed to list results", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

type startRequest struct {
	Module model.Module `json:"module"`
}

func (h *Handler) handleStartModule(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}

	id, _ := model.IdentityFromContext(r.Context())
	st, audio, err := h.session(id).StartModule(r.Context(), req.Module)
	if err != nil {
		h.examError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{State: st, Audio: audio})
}

func (h *Handler) handleAudioTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClipBytes)
	if err := r.ParseMultipartForm(maxClipBytes); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}
	clip, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}
	defer clip.Close()

	id, _ := model.IdentityFromContext(r.Context())
	st, audio, err := h.session(id).SubmitAudioTurn(r.Context(), clip, header.Filename)
	if err != nil {
		h.examError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{State: st, Audio: audio})
}

type writingRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleWriting(w http.ResponseWriter, r *http.Request) {
	var req writingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}

	id, _ := model.IdentityFromContext(r.Context())
	st, err := h.session(id).SubmitWriting(r.Context(), req.Text)
	if err != nil {
		h.examError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{State: st})
}

func (h *Handler) handleRetryGrading(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	st, err := h.session(id).RetryGrading(r.Context())
	if err != nil {
		h.examError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{State: st})
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	st := h.session(id).Stop()
	writeJSON(w, http.StatusOK, examResponse{State: st})
}

// examError maps state-machine errors to HTTP statuses. Provider
// failures get a generic localized message; the detail goes to the log
// only.
func (h *Handler) examError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, exam.ErrUnknownModule):
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "UnknownModule"))
	case errors.Is(err, exam.ErrWrongStep), errors.Is(err, exam.ErrWrongModule):
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "WrongStep"))
	case errors.Is(err, exam.ErrInputTooShort):
		writeError(w, http.StatusUnprocessableEntity, appI18n.T(ctx, "InputTooShort"))
	case errors.Is(err, exam.ErrNothingToGrade):
		writeError(w, http.StatusConflict, appI18n.T(ctx, "NothingToGrade"))
	case errors.Is(err, exam.ErrSuperseded):
		writeError(w, http.StatusConflict, appI18n.T(ctx, "SessionNotFound"))
	case errors.Is(err, exam.ErrGrading):
		slog.Error("grading failed", "error", err)
		writeError(w, http.StatusBadGateway, appI18n.T(ctx, "GradingFailed"))
	case errors.Is(err, exam.ErrProvider):
		slog.Error("provider call failed", "error", err)
		writeError(w, http.StatusBadGateway, appI18n.T(ctx, "ProviderUnavailable"))
	default:
		slog.Error("exam transition failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
