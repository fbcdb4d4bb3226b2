package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tcfwrite/internal/model"
)

// InsertSubject stores a prompt bundle and returns its id.
func (s *Store) InsertSubject(sub model.Subject) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO subjects (id, title, task1_prompt, task2_prompt, task3_prompt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Title, sub.Task1Prompt, sub.Task2Prompt, sub.Task3Prompt, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// GetSubject returns a subject by id, or nil.
func (s *Store) GetSubject(id string) (*model.Subject, error) {
	return s.scanSubject(s.db.QueryRow(
		`SELECT id, title, task1_prompt, task2_prompt, task3_prompt, created_at FROM subjects WHERE id = ?`, id,
	))
}

// RandomSubject returns one subject drawn uniformly, or nil when none exist.
func (s *Store) RandomSubject() (*model.Subject, error) {
	return s.scanSubject(s.db.QueryRow(
		`SELECT id, title, task1_prompt, task2_prompt, task3_prompt, created_at
		 FROM subjects ORDER BY RANDOM() LIMIT 1`,
	))
}

func (s *Store) scanSubject(row *sql.Row) (*model.Subject, error) {
	var sub model.Subject
	err := row.Scan(&sub.ID, &sub.Title, &sub.Task1Prompt, &sub.Task2Prompt, &sub.Task3Prompt, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubjects returns all subjects ordered by title.
func (s *Store) ListSubjects() ([]model.Subject, error) {
	rows, err := s.db.Query(
		`SELECT id, title, task1_prompt, task2_prompt, task3_prompt, created_at FROM subjects ORDER BY title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Title, &sub.Task1Prompt, &sub.Task2Prompt, &sub.Task3Prompt, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// SubjectCount returns the number of stored subjects.
func (s *Store) SubjectCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM subjects`).Scan(&count)
	return count, err
}
