package store

import (
	"time"

	"github.com/google/uuid"

	"tcfwrite/internal/model"
)

// InsertFeedback stores a peer comment on a task and returns its id.
func (s *Store) InsertFeedback(fb model.PeerFeedback) (string, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO feedbacks (id, task_id, author_id, comment, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.TaskID, fb.AuthorID, fb.Comment, fb.Rating, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return fb.ID, nil
}

// ListFeedbackForTask returns peer comments on a task, newest first,
// with the author's username joined in for display.
func (s *Store) ListFeedbackForTask(taskID string) ([]model.PeerFeedback, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.task_id, f.author_id, u.username, f.comment, f.rating, f.created_at
		 FROM feedbacks f JOIN users u ON u.id = f.author_id
		 WHERE f.task_id = ? ORDER BY f.created_at DESC`, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PeerFeedback
	for rows.Next() {
		var fb model.PeerFeedback
		if err := rows.Scan(&fb.ID, &fb.TaskID, &fb.AuthorID, &fb.Author, &fb.Comment, &fb.Rating, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
