package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbender/sprechtrainer/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		module TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		transcript TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResult appends a completed exam result. There is no update or
// delete path; results are immutable history.
func (s *Store) SaveResult(r model.ExamResult) (int64, error) {
	feedback, err := json.Marshal(r.Feedback)
	if err != nil {
		return 0, fmt.Errorf("marshal feedback: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO exam_results (user_id, module, topic, grade, duration_seconds, transcript, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Module, r.Topic, r.Grade, r.DurationSeconds, r.Transcript, string(feedback), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListResults returns a user's results, oldest first.
func (s *Store) ListResults(userID int64) ([]model.ExamResult, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, module, topic, grade, duration_seconds, transcript, feedback, created_at
		 FROM exam_results WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]model.ExamResult, error) {
	var results []model.ExamResult
	for rows.Next() {
		var (
			r        model.ExamResult
			feedback string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Module, &r.Topic, &r.Grade,
			&r.DurationSeconds, &r.Transcript, &feedback, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(feedback), &r.Feedback); err != nil {
			return nil, fmt.Errorf("unmarshal feedback for result %d: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats recomputes the menu aggregate for a user.
func (s *Store) Stats(userID int64) (model.UserStats, error) {
	stats := model.UserStats{LastGrade: "-"}

	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT module) FROM exam_results WHERE user_id = ?`, userID,
	).Scan(&stats.TotalExams, &stats.ModulesTaken)
	if err != nil {
		return stats, err
	}
	if stats.TotalExams == 0 {
		return stats, nil
	}

	err = s.db.QueryRow(
		`SELECT grade FROM exam_results WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID,
	).Scan(&stats.LastGrade)
	if err != nil {
		return stats, err
	}
	return stats, nil
}
