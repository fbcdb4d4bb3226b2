package store

import (
	"fmt"

	"tcfwrite/internal/model"
)

// ExportAllExams builds export-ready results from every exam attempt,
// including tasks that never received AI feedback (their feedback fields
// stay empty so an operator can spot unscored submissions).
func (s *Store) ExportAllExams() ([]model.ExamResult, error) {
	exams, err := s.ListExams()
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	var results []model.ExamResult
	for _, exam := range exams {
		user, err := s.GetUserByID(exam.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", exam.UserID, err)
		}

		var subject *model.Subject
		if exam.SubjectID != nil {
			subject, err = s.GetSubject(*exam.SubjectID)
			if err != nil {
				return nil, fmt.Errorf("get subject %s: %w", *exam.SubjectID, err)
			}
		}

		tasks, err := s.GetTasksForExam(exam.ID)
		if err != nil {
			return nil, fmt.Errorf("get tasks for exam %s: %w", exam.ID, err)
		}

		var taskResults []model.TaskResult
		for _, t := range tasks {
			c := model.ConstraintsFor(t.TaskNumber, subject)
			tr := model.TaskResult{
				TaskNumber:   t.TaskNumber,
				Content:      t.Content,
				WordCount:    t.WordCount,
				MinWords:     c.MinWords,
				MaxWords:     c.MaxWords,
				Feedback:     t.AIFeedback,
				AIAnalyzedAt: t.AIAnalyzedAt,
			}
			if t.AIScore != nil {
				tr.NCLCLevel = *t.AIScore
			}
			taskResults = append(taskResults, tr)
		}

		r := model.ExamResult{
			ExamID:      exam.ID,
			StartedAt:   exam.StartedAt,
			SubmittedAt: exam.SubmittedAt,
			Locked:      exam.Locked,
			Tasks:       taskResults,
		}
		if user != nil {
			r.Username = user.Username
			r.DisplayName = user.DisplayName
		}
		if subject != nil {
			r.SubjectTitle = subject.Title
		}
		results = append(results, r)
	}

	return results, nil
}
