package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/mbender/sprechtrainer/internal/i18n"
	"github.com/mbender/sprechtrainer/internal/model"
	"github.com/mbender/sprechtrainer/internal/store"
)

const (
	sessionCookieName = "session"
	guestCookieName   = "guest"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware issues a token on safe methods and checks the
// X-CSRF-Token header against the cookie on mutating ones.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			token, err := generateCSRFToken()
			if err != nil {
				slog.Error("failed to generate CSRF token", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: false,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			writeError(w, http.StatusForbidden, "csrf token missing")
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			slog.Warn("CSRF header missing")
			writeError(w, http.StatusForbidden, "csrf token missing")
			return
		}
		if len(headerToken) != len(cookie.Value) ||
			subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			writeError(w, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireIdentity resolves the caller to a registered user or a guest.
// A login session wins over a guest cookie.
func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			authSess, err := h.store.GetAuthSession(cookie.Value)
			if err == nil {
				user, err := h.store.GetUserByID(authSess.UserID)
				if err == nil && user.Active {
					id := model.Identity{
						UserID:      user.ID,
						Username:    user.Username,
						DisplayName: user.DisplayName,
					}
					next.ServeHTTP(w, r.WithContext(model.ContextWithIdentity(r.Context(), id)))
					return
				}
			}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				slog.Error("failed to resolve auth session", "error", err)
			}
		}

		if cookie, err := r.Cookie(guestCookieName); err == nil && cookie.Value != "" {
			id := model.Identity{
				Username:    cookie.Value,
				DisplayName: "Gast",
				Guest:       true,
			}
			next.ServeHTTP(w, r.WithContext(model.ContextWithIdentity(r.Context(), id)))
			return
		}

		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "NotAuthenticated"))
	})
}

type credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type meResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Guest       bool   `json:"guest"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || utf8.RuneCountInString(creds.Password) < 8 {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "SignupError"))
		return
	}
	if creds.DisplayName == "" {
		creds.DisplayName = creds.Username
	}

	if _, err := h.store.GetUserByUsername(creds.Username); err == nil {
		writeError(w, http.StatusConflict, appI18n.T(r.Context(), "UsernameTaken"))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to check username", "error", err)
		writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "SignupError"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "SignupError"))
		return
	}
	user, err := h.store.CreateUser(creds.Username, creds.DisplayName, string(hash), model.UserRoleStudent)
	if err != nil {
		slog.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "SignupError"))
		return
	}

	h.issueLoginCookie(w, r, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadRequest"))
		return
	}

	user, err := h.store.GetUserByUsername(strings.TrimSpace(creds.Username))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !user.Active {
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	h.issueLoginCookie(w, r, user)
}

func (h *Handler) issueLoginCookie(w http.ResponseWriter, r *http.Request, user *model.User) {
	session, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	// A previous guest identity on this browser is abandoned, not
	// merged; guest work is throwaway by design of the guest mode.
	http.SetCookie(w, &http.Cookie{
		Name:   guestCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, meResponse{
		Username:    user.Username,
		DisplayName: user.DisplayName,
	})
}

// handleGuest issues an anonymous identity. Guests can take every
// module but nothing they do is persisted.
func (h *Handler) handleGuest(w http.ResponseWriter, r *http.Request) {
	guestID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     guestCookieName,
		Value:    guestID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	writeJSON(w, http.StatusOK, meResponse{
		Username:    guestID,
		DisplayName: "Gast",
		Guest:       true,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if authSess, err := h.store.GetAuthSession(cookie.Value); err == nil {
			if user, err := h.store.GetUserByID(authSess.UserID); err == nil {
				h.dropSession(model.Identity{
					UserID:   user.ID,
					Username: user.Username,
				})
			}
		}
		_ = h.store.DeleteAuthSession(cookie.Value)
	}
	if cookie, err := r.Cookie(guestCookieName); err == nil && cookie.Value != "" {
		h.dropSession(model.Identity{Username: cookie.Value, Guest: true})
	}

	for _, name := range []string{sessionCookieName, guestCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.SecureCookies,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		Username:    id.Username,
		DisplayName: id.DisplayName,
		Guest:       id.Guest,
	})
}
