package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a regular exam candidate.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a registered candidate or administrator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	NCLCTarget   int       `json:"nclc_target"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ExamPhase is the lifecycle phase of an exam attempt.
// Phases only ever move forward: idle -> running -> submitted -> results.
type ExamPhase string

const (
	PhaseIdle      ExamPhase = "idle"
	PhaseRunning   ExamPhase = "running"
	PhaseSubmitted ExamPhase = "submitted"
	PhaseResults   ExamPhase = "results"
)

// ExamDurationSeconds is the total writing time for one attempt.
const ExamDurationSeconds = 60 * 60

// TaskCount is the number of writing tasks per exam.
const TaskCount = 3

// Subject is a themed bundle of three task prompts selectable at exam start.
type Subject struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Task1Prompt string    `json:"task1_prompt"`
	Task2Prompt string    `json:"task2_prompt"`
	Task3Prompt string    `json:"task3_prompt"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubjectImport is used for seeding subjects from JSON files.
type SubjectImport struct {
	Title       string `json:"title"`
	Task1Prompt string `json:"task1_prompt"`
	Task2Prompt string `json:"task2_prompt"`
	Task3Prompt string `json:"task3_prompt"`
}

// TaskDraft is the in-memory draft of one writing task while an exam runs.
// WordCount is recomputed on every content change, never stored stale.
type TaskDraft struct {
	TaskNumber int    `json:"task_number"`
	Content    string `json:"content"`
	WordCount  int    `json:"word_count"`
}

// Exam is a persisted exam attempt.
type Exam struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	SubjectID   *string    `json:"subject_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Locked      bool       `json:"is_locked"`
}

// TaskRecord is a persisted writing task with any scoring result.
type TaskRecord struct {
	ID           string      `json:"id"`
	ExamID       string      `json:"exam_id"`
	TaskNumber   int         `json:"task_number"`
	Content      string      `json:"content"`
	WordCount    int         `json:"word_count"`
	AIScore      *string     `json:"ai_score,omitempty"`
	AIFeedback   *AIFeedback `json:"ai_feedback,omitempty"`
	AIAnalyzedAt *time.Time  `json:"ai_analyzed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PeerFeedback is a community comment on a submitted task.
type PeerFeedback struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author,omitempty"`
	Comment   string    `json:"comment"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// GrammarError is one correction in an AI feedback result.
type GrammarError struct {
	Original    string `json:"original"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// Suggestion is one improvement proposal in an AI feedback result.
type Suggestion struct {
	Original string `json:"original"`
	Improved string `json:"improved"`
	Reason   string `json:"reason"`
}

// Criteria is the fixed three-axis rubric, each axis 0-10.
type Criteria struct {
	Coherence int `json:"coherence"`
	Lexique   int `json:"lexique"`
	Syntaxe   int `json:"syntaxe"`
}

// AIFeedback is the structured scoring result for one task.
// The JSON key set is a compatibility contract with the rendering client;
// do not rename fields.
type AIFeedback struct {
	NCLCLevel      string         `json:"nclc_level"`
	GlobalScore    int            `json:"global_score"`
	GrammarErrors  []GrammarError `json:"grammar_errors"`
	Suggestions    []Suggestion   `json:"suggestions"`
	GlobalFeedback string         `json:"global_feedback"`
	Criteria       Criteria       `json:"criteria"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Addr          string
	SecureCookies bool // Set Secure flag on cookies (disable for local dev)
	DefaultLang   string
}
