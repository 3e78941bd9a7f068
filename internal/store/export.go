package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbender/sprechtrainer/internal/model"
)

// ExportRow is one exam result joined with its user, for the export
// subcommand.
type ExportRow struct {
	Username        string              `json:"username"`
	DisplayName     string              `json:"display_name"`
	Module          model.Module        `json:"module"`
	Topic           string              `json:"topic,omitempty"`
	Grade           model.Grade         `json:"grade"`
	DurationSeconds int                 `json:"duration_seconds"`
	Transcript      string              `json:"transcript"`
	Feedback        model.GradingResult `json:"feedback"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ExportAllResults returns every stored result with user details,
// oldest first.
func (s *Store) ExportAllResults() ([]ExportRow, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.user_id, r.module, r.topic, r.grade, r.duration_seconds, r.transcript, r.feedback, r.created_at,
		        u.username, u.display_name
		 FROM exam_results r JOIN users u ON u.id = r.user_id
		 ORDER BY r.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var (
			r        model.ExamResult
			feedback string
			row      ExportRow
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Module, &r.Topic, &r.Grade,
			&r.DurationSeconds, &r.Transcript, &feedback, &r.CreatedAt,
			&row.Username, &row.DisplayName); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(feedback), &r.Feedback); err != nil {
			return nil, fmt.Errorf("unmarshal feedback for result %d: %w", r.ID, err)
		}
		row.Module = r.Module
		row.Topic = r.Topic
		row.Grade = r.Grade
		row.DurationSeconds = r.DurationSeconds
		row.Transcript = r.Transcript
		row.Feedback = r.Feedback
		row.CreatedAt = r.CreatedAt
		out = append(out, row)
	}
	return out, rows.Err()
}
