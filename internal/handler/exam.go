package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tcfwrite/internal/exam"
	"tcfwrite/internal/i18n"
	"tcfwrite/internal/model"
	"tcfwrite/internal/session"
	"tcfwrite/internal/words"
)

type startExamRequest struct {
	SubjectID string `json:"subject_id,omitempty"`
	Random    bool   `json:"random,omitempty"`
}

type editTaskRequest struct {
	Content string `json:"content"`
}

type activeTaskRequest struct {
	TaskNumber int `json:"task_number"`
}

type submitRequest struct {
	Tasks []model.TaskDraft `json:"tasks,omitempty"`
}

// taskState is one draft plus its word-count band evaluation.
type taskState struct {
	model.TaskDraft
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
	Label    string `json:"label"`
	Prompt   string `json:"prompt"`
	Status   string `json:"status"`
}

type examStateResponse struct {
	session.Snapshot
	Tasks    [model.TaskCount]taskState `json:"tasks"`
	AllValid bool                       `json:"all_valid"`
	Locked   bool                       `json:"is_locked"`
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	// An empty body means an exam on the default prompts.
	var req startExamRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}

	var subject *model.Subject
	var err error
	switch {
	case req.SubjectID != "":
		subject, err = h.store.GetSubject(req.SubjectID)
		if err != nil {
			slog.Error("failed to load subject", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if subject == nil {
			writeError(w, r, http.StatusNotFound, "ErrSubjectNotFound")
			return
		}
	case req.Random:
		subject, err = h.store.RandomSubject()
		if err != nil {
			slog.Error("failed to pick random subject", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if subject == nil {
			writeError(w, r, http.StatusNotFound, "ErrNoSubjects")
			return
		}
	}
	// Neither set: the default prompts apply.

	var subjectID *string
	if subject != nil {
		subjectID = &subject.ID
	}
	ex, err := h.store.CreateExam(user.ID, subjectID)
	if err != nil {
		slog.Error("failed to create exam", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	m := h.registry.Start(ex.ID, subject)
	slog.Info("exam started", "exam_id", ex.ID, "user_id", user.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":          true,
		"exam":             ex,
		"state":            h.stateResponse(m, &ex),
		"constraints":      model.AllConstraints(subject),
		"duration_seconds": model.ExamDurationSeconds,
	})
}

// loadOwnedExam resolves the exam route param against the caller,
// writing the error response itself when the exam is unavailable.
func (h *Handler) loadOwnedExam(w http.ResponseWriter, r *http.Request) *model.Exam {
	user := model.UserFromContext(r.Context())
	examID := chi.URLParam(r, "examID")

	ex, err := h.store.GetExamForUser(examID, user.ID)
	if err != nil {
		slog.Error("failed to load exam", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return nil
	}
	if ex == nil {
		writeError(w, r, http.StatusNotFound, "ErrExamNotFound")
		return nil
	}
	return ex
}

func (h *Handler) handleExamState(w http.ResponseWriter, r *http.Request) {
	ex := h.loadOwnedExam(w, r)
	if ex == nil {
		return
	}

	m := h.registry.Get(ex.ID)
	if m == nil {
		// No live session: server restarted or the attempt is finished.
		writeJSON(w, http.StatusOK, map[string]any{
			"exam_id":   ex.ID,
			"phase":     phaseForStored(ex),
			"is_locked": ex.Locked,
		})
		return
	}

	writeJSON(w, http.StatusOK, h.stateResponse(m, ex))
}

func (h *Handler) handleEditTask(w http.ResponseWriter, r *http.Request) {
	ex := h.loadOwnedExam(w, r)
	if ex == nil {
		return
	}
	taskNumber, err := strconv.Atoi(chi.URLParam(r, "taskNumber"))
	if err != nil || taskNumber < 1 || taskNumber > model.TaskCount {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}

	var req editTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}

	m := h.registry.Get(ex.ID)
	if m == nil {
		writeError(w, r, http.StatusConflict, "ErrExamLocked")
		return
	}

	// A no-op outside the running phase; the response carries the
	// actual state either way.
	m.EditTask(taskNumber, req.Content)

	writeJSON(w, http.StatusOK, h.stateResponse(m, ex))
}

func (h *Handler) handleActiveTask(w http.ResponseWriter, r *http.Request) {
	ex := h.loadOwnedExam(w, r)
	if ex == nil {
		return
	}

	var req activeTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}
	if req.TaskNumber < 1 || req.TaskNumber > model.TaskCount {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}

	m := h.registry.Get(ex.ID)
	if m != nil {
		m.SetActiveTask(req.TaskNumber)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"active_task": req.TaskNumber,
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	examID := chi.URLParam(r, "examID")

	// Prefer the server-side drafts; fall back to a posted task list for
	// clients resuming after a server restart. Word counts are always
	// recomputed, never trusted from the wire.
	var drafts []model.TaskDraft
	var subject *model.Subject
	if m := h.registry.Get(examID); m != nil {
		snap := m.Snapshot()
		subject = snap.Subject
		drafts = snap.Tasks[:]
	} else {
		var req submitRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
			return
		}
		drafts = req.Tasks
		for i := range drafts {
			drafts[i].WordCount = words.Count(drafts[i].Content)
		}
	}

	// Out-of-band word counts warn but never block submission.
	for _, d := range drafts {
		if d.TaskNumber < 1 || d.TaskNumber > model.TaskCount {
			continue
		}
		c := model.ConstraintsFor(d.TaskNumber, subject)
		if st := words.StatusOf(d.WordCount, c.MinWords, c.MaxWords); st != words.StatusValid {
			slog.Warn("submitting task outside word band",
				"exam_id", examID, "task_number", d.TaskNumber, "word_count", d.WordCount, "status", st)
		}
	}

	ids, err := h.exams.Submit(r.Context(), user.ID, examID, drafts)
	if err != nil {
		switch {
		case errors.Is(err, exam.ErrUnauthorized):
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
		case errors.Is(err, exam.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "ErrExamNotFound")
		case errors.Is(err, exam.ErrConflict):
			writeError(w, r, http.StatusConflict, "ErrExamLocked")
		case errors.Is(err, exam.ErrInvalidTasks):
			writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		default:
			slog.Error("submission failed", "exam_id", examID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		}
		return
	}

	if m := h.registry.Get(examID); m != nil {
		m.Submit()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"task_ids": ids,
		"message":  i18n.T(r.Context(), "ExamSubmitted"),
	})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	ex := h.loadOwnedExam(w, r)
	if ex == nil {
		return
	}

	tasks, err := h.store.GetTasksForExam(ex.ID)
	if err != nil {
		slog.Error("failed to load tasks", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	scored := 0
	for _, t := range tasks {
		if t.AIFeedback != nil {
			scored++
		}
	}
	if m := h.registry.Get(ex.ID); m != nil && scored == len(tasks) && len(tasks) > 0 {
		m.MarkResults()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exam":             ex,
		"tasks":            tasks,
		"scored":           scored,
		"scoring_complete": len(tasks) > 0 && scored == len(tasks),
	})
}

func (h *Handler) handleListMyExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	exams, err := h.store.ListExamsForUser(user.ID)
	if err != nil {
		slog.Error("failed to list exams", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects()
	if err != nil {
		slog.Error("failed to list subjects", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *Handler) handleRandomSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := h.store.RandomSubject()
	if err != nil {
		slog.Error("failed to pick random subject", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if subject == nil {
		writeError(w, r, http.StatusNotFound, "ErrNoSubjects")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject": subject})
}

// stateResponse renders the machine snapshot with per-task constraint
// bands and word-count status.
func (h *Handler) stateResponse(m *session.Machine, ex *model.Exam) examStateResponse {
	snap := m.Snapshot()

	resp := examStateResponse{
		Snapshot: snap,
		AllValid: true,
		Locked:   ex.Locked,
	}
	for i, draft := range snap.Tasks {
		c := model.ConstraintsFor(draft.TaskNumber, snap.Subject)
		status := words.StatusOf(draft.WordCount, c.MinWords, c.MaxWords)
		if status != words.StatusValid {
			resp.AllValid = false
		}
		resp.Tasks[i] = taskState{
			TaskDraft: draft,
			MinWords:  c.MinWords,
			MaxWords:  c.MaxWords,
			Label:     c.Label,
			Prompt:    c.Prompt,
			Status:    string(status),
		}
	}
	return resp
}

// phaseForStored maps a persisted exam row to a phase when no live
// machine exists for it.
func phaseForStored(ex *model.Exam) model.ExamPhase {
	if ex.Locked {
		return model.PhaseSubmitted
	}
	return model.PhaseIdle
}
