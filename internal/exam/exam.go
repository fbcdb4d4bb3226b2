// Package exam implements the submission protocol: persist the three
// task drafts, lock the attempt against further edits, then dispatch
// scoring work that the submitter never waits on.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tcfwrite/internal/model"
	"tcfwrite/internal/store"
)

var (
	// ErrUnauthorized means there is no authenticated caller.
	ErrUnauthorized = errors.New("not authenticated")
	// ErrNotFound means the exam does not exist or is not owned by the caller.
	ErrNotFound = errors.New("exam not found")
	// ErrConflict means the exam is already locked.
	ErrConflict = errors.New("exam already submitted")
	// ErrInvalidTasks means the submission payload is not exactly tasks 1..3.
	ErrInvalidTasks = errors.New("submission must contain exactly tasks 1, 2 and 3")
)

// Scorer grades one task's content. Implemented by llm.Client.
type Scorer interface {
	Score(ctx context.Context, taskNumber int, content string) (*model.AIFeedback, error)
}

// Service runs submissions against the store and hands scoring to a
// backend without coupling the two: a slow or dead scorer never delays
// or fails a submission.
type Service struct {
	store  *store.Store
	scorer Scorer

	scoreTimeout time.Duration
	wg           sync.WaitGroup
}

// NewService creates a submission service.
func NewService(st *store.Store, scorer Scorer) *Service {
	return &Service{
		store:        st,
		scorer:       scorer,
		scoreTimeout: 2 * time.Minute,
	}
}

// Submit persists the three drafts for an exam, locks it, and dispatches
// one scoring goroutine per task. Returns the persisted task ids.
//
// The two durable writes are ordered: tasks first, so scoring dispatch
// has stable identifiers, then the lock, which is the durability point.
// A crash between the two leaves tasks persisted and the exam unlocked;
// retrying converges because task rows are keyed by (exam, number) and
// the lock is a compare-and-set.
func (s *Service) Submit(ctx context.Context, userID int64, examID string, drafts []model.TaskDraft) ([]string, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}

	exam, err := s.store.GetExamForUser(examID, userID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam == nil {
		return nil, ErrNotFound
	}
	if exam.Locked {
		return nil, ErrConflict
	}
	if err := validateDrafts(drafts); err != nil {
		return nil, err
	}

	ids, err := s.store.UpsertTasks(examID, drafts)
	if err != nil {
		return nil, fmt.Errorf("persist tasks: %w", err)
	}

	if err := s.store.LockExam(examID); err != nil {
		if errors.Is(err, store.ErrExamLocked) {
			// Lost a race with another submission of the same exam.
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("lock exam: %w", err)
	}

	slog.Info("exam submitted", "exam_id", examID, "user_id", userID)

	// Fire-and-forget: the response never waits on scoring, failures are
	// logged and the affected task simply stays unscored.
	for i, draft := range drafts {
		s.wg.Add(1)
		go s.scoreTask(ids[i], draft.TaskNumber, draft.Content)
	}

	return ids, nil
}

func (s *Service) scoreTask(taskID string, taskNumber int, content string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.scoreTimeout)
	defer cancel()

	fb, err := s.scorer.Score(ctx, taskNumber, content)
	if err != nil {
		slog.Error("scoring failed", "task_id", taskID, "task_number", taskNumber, "error", err)
		return
	}
	if err := s.store.UpdateTaskFeedback(taskID, fb); err != nil {
		slog.Error("failed to record scoring result", "task_id", taskID, "error", err)
		return
	}
	slog.Info("task scored", "task_id", taskID, "task_number", taskNumber, "nclc_level", fb.NCLCLevel)
}

// Wait blocks until all in-flight scoring goroutines finish. Used for
// graceful shutdown and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func validateDrafts(drafts []model.TaskDraft) error {
	if len(drafts) != model.TaskCount {
		return ErrInvalidTasks
	}
	var seen [model.TaskCount]bool
	for _, d := range drafts {
		if d.TaskNumber < 1 || d.TaskNumber > model.TaskCount || seen[d.TaskNumber-1] {
			return ErrInvalidTasks
		}
		seen[d.TaskNumber-1] = true
	}
	return nil
}
