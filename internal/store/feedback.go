package store

import (
	"fmt"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// FeedbackEntry is one recorded user decision.
type FeedbackEntry struct {
	FilePath   string
	Action     types.FeedbackAction
	RecordedAt time.Time
}

// RecordFeedback stores a user decision about a scan candidate.
func (s *Store) RecordFeedback(filePath string, action types.FeedbackAction) error {
	_, err := s.db.Exec(
		`INSERT INTO user_feedback (file_path, action, recorded_at) VALUES (?, ?, ?)`,
		filePath, string(action), time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record feedback for %s: %w", filePath, err)
	}
	return nil
}

// FeedbackFor returns the recorded decisions for a path, oldest first.
func (s *Store) FeedbackFor(filePath string) ([]FeedbackEntry, error) {
	rows, err := s.db.Query(
		`SELECT file_path, action, recorded_at FROM user_feedback WHERE file_path = ? ORDER BY id`,
		filePath,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback for %s: %w", filePath, err)
	}
	defer rows.Close()

	var entries []FeedbackEntry
	for rows.Next() {
		var e FeedbackEntry
		var action, recordedAt string
		if err := rows.Scan(&e.FilePath, &action, &recordedAt); err != nil {
			return nil, err
		}
		e.Action = types.FeedbackAction(action)
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
