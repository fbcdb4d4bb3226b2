package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Exams       []ExamResult `json:"exams"`
}

// ExamResult holds one candidate's exam attempt for export.
type ExamResult struct {
	ExamID       string       `json:"exam_id"`
	Username     string       `json:"username"`
	DisplayName  string       `json:"display_name"`
	SubjectTitle string       `json:"subject_title,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	SubmittedAt  *time.Time   `json:"submitted_at,omitempty"`
	Locked       bool         `json:"is_locked"`
	Tasks        []TaskResult `json:"tasks"`
}

// TaskResult holds per-task data for export.
type TaskResult struct {
	TaskNumber   int         `json:"task_number"`
	Content      string      `json:"content"`
	WordCount    int         `json:"word_count"`
	MinWords     int         `json:"min_words"`
	MaxWords     int         `json:"max_words"`
	NCLCLevel    string      `json:"nclc_level,omitempty"`
	Feedback     *AIFeedback `json:"ai_feedback,omitempty"`
	AIAnalyzedAt *time.Time  `json:"ai_analyzed_at,omitempty"`
}
