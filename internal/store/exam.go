package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tcfwrite/internal/model"
)

// ErrExamLocked is returned when locking an exam that is already locked.
var ErrExamLocked = errors.New("exam already locked")

// CreateExam inserts a new unlocked exam attempt and returns it.
func (s *Store) CreateExam(userID int64, subjectID *string) (model.Exam, error) {
	exam := model.Exam{
		ID:        uuid.NewString(),
		UserID:    userID,
		SubjectID: subjectID,
		StartedAt: time.Now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO exams (id, user_id, subject_id, started_at, is_locked) VALUES (?, ?, ?, ?, 0)`,
		exam.ID, exam.UserID, exam.SubjectID, exam.StartedAt,
	)
	if err != nil {
		return model.Exam{}, err
	}
	return exam, nil
}

// GetExam returns an exam by id, or nil if it does not exist.
func (s *Store) GetExam(id string) (*model.Exam, error) {
	return s.scanExam(s.db.QueryRow(
		`SELECT id, user_id, subject_id, started_at, submitted_at, is_locked FROM exams WHERE id = ?`, id,
	))
}

// GetExamForUser returns an exam only when it belongs to the given user;
// nil covers both "missing" and "not owned" so callers cannot probe for
// other candidates' exam ids.
func (s *Store) GetExamForUser(id string, userID int64) (*model.Exam, error) {
	return s.scanExam(s.db.QueryRow(
		`SELECT id, user_id, subject_id, started_at, submitted_at, is_locked
		 FROM exams WHERE id = ? AND user_id = ?`, id, userID,
	))
}

func (s *Store) scanExam(row *sql.Row) (*model.Exam, error) {
	var e model.Exam
	err := row.Scan(&e.ID, &e.UserID, &e.SubjectID, &e.StartedAt, &e.SubmittedAt, &e.Locked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LockExam marks an exam immutable with a submission timestamp. The
// guarded UPDATE makes the lock a compare-and-set: a second caller gets
// ErrExamLocked instead of silently re-locking.
func (s *Store) LockExam(id string) error {
	res, err := s.db.Exec(
		`UPDATE exams SET is_locked = 1, submitted_at = ? WHERE id = ? AND is_locked = 0`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExamLocked
	}
	return nil
}

// UpsertTasks persists the three drafts for an exam in one transaction.
// Rows are keyed by (exam_id, task_number), so retrying a submission that
// crashed before locking converges on the same three rows instead of
// duplicating them. Returns the persisted task ids ordered by task number.
func (s *Store) UpsertTasks(examID string, drafts []model.TaskDraft) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		_, err := tx.Exec(
			`INSERT INTO tasks (id, exam_id, task_number, content, word_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(exam_id, task_number) DO UPDATE SET content = excluded.content, word_count = excluded.word_count`,
			uuid.NewString(), examID, d.TaskNumber, d.Content, d.WordCount, time.Now(),
		)
		if err != nil {
			return nil, fmt.Errorf("upsert task %d: %w", d.TaskNumber, err)
		}
		// On conflict the existing row keeps its id; read it back.
		var id string
		err = tx.QueryRow(
			`SELECT id FROM tasks WHERE exam_id = ? AND task_number = ?`, examID, d.TaskNumber,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("read back task %d: %w", d.TaskNumber, err)
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit()
}

// GetTask returns a task by id, or nil.
func (s *Store) GetTask(id string) (*model.TaskRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, task_number, content, word_count, ai_score, ai_feedback, ai_analyzed_at, created_at
		 FROM tasks WHERE id = ?`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return &tasks[0], nil
}

// GetTasksForExam returns all tasks for an exam ordered by task number.
func (s *Store) GetTasksForExam(examID string) ([]model.TaskRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, task_number, content, word_count, ai_score, ai_feedback, ai_analyzed_at, created_at
		 FROM tasks WHERE exam_id = ? ORDER BY task_number`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]model.TaskRecord, error) {
	var tasks []model.TaskRecord
	for rows.Next() {
		var t model.TaskRecord
		var feedbackJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.ExamID, &t.TaskNumber, &t.Content, &t.WordCount,
			&t.AIScore, &feedbackJSON, &t.AIAnalyzedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if feedbackJSON.Valid && feedbackJSON.String != "" {
			var fb model.AIFeedback
			if err := json.Unmarshal([]byte(feedbackJSON.String), &fb); err != nil {
				return nil, fmt.Errorf("decode feedback for task %s: %w", t.ID, err)
			}
			t.AIFeedback = &fb
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskFeedback writes a scoring result against a task with a
// completion timestamp, making it visible to polling readers.
func (s *Store) UpdateTaskFeedback(taskID string, fb *model.AIFeedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE tasks SET ai_score = ?, ai_feedback = ?, ai_analyzed_at = ? WHERE id = ?`,
		fb.NCLCLevel, string(data), time.Now(), taskID,
	)
	return err
}

// ListExamsForUser returns a user's exams, newest first.
func (s *Store) ListExamsForUser(userID int64) ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, subject_id, started_at, submitted_at, is_locked
		 FROM exams WHERE user_id = ? ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, subject_id, started_at, submitted_at, is_locked
		 FROM exams ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

func scanExams(rows *sql.Rows) ([]model.Exam, error) {
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.UserID, &e.SubjectID, &e.StartedAt, &e.SubmittedAt, &e.Locked); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
