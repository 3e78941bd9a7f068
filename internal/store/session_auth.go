package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mbender/sprechtrainer/internal/model"
)

// AuthSessionTTL is how long a login session stays valid.
const AuthSessionTTL = 24 * time.Hour

// CreateAuthSession issues a new login session token for the user.
func (s *Store) CreateAuthSession(userID int64) (*model.AuthSession, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	session := &model.AuthSession{
		ID:        hex.EncodeToString(buf),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(AuthSessionTTL),
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert auth session: %w", err)
	}
	return session, nil
}

// GetAuthSession returns the session if it exists and has not expired.
func (s *Store) GetAuthSession(id string) (*model.AuthSession, error) {
	var session model.AuthSession
	err := s.db.QueryRow(
		`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_, _ = s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
		return nil, ErrNotFound
	}
	return &session, nil
}

// DeleteAuthSession removes a login session (logout).
func (s *Store) DeleteAuthSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions deletes all expired login sessions.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
