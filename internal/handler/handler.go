// Package handler exposes the JSON API: authentication, exam lifecycle,
// the submission protocol, results polling, peer feedback and the admin
// surface.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"tcfwrite/internal/exam"
	"tcfwrite/internal/model"
	"tcfwrite/internal/session"
	"tcfwrite/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	exams    *exam.Service
	registry *session.Registry
	config   model.ServerConfig
}

// New creates a new Handler. The registry's expiry callback is wired
// here so a timed-out attempt goes through the same submission path as
// an explicit submit.
func New(s *store.Store, svc *exam.Service, cfg model.ServerConfig) *Handler {
	h := &Handler{store: s, exams: svc, config: cfg}
	h.registry = session.NewRegistry(h.autoSubmit)
	return h
}

// Registry exposes the session registry for shutdown coordination.
func (h *Handler) Registry() *session.Registry {
	return h.registry
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/register", h.handleRegister)
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/api/subjects", h.handleListSubjects)
		r.Get("/api/subjects/random", h.handleRandomSubject)

		r.Post("/api/exam/start", h.handleStartExam)
		r.Get("/api/exam/{examID}", h.handleExamState)
		r.Put("/api/exam/{examID}/task/{taskNumber}", h.handleEditTask)
		r.Post("/api/exam/{examID}/active-task", h.handleActiveTask)
		r.Post("/api/exam/{examID}/submit", h.handleSubmit)
		r.Get("/api/exam/{examID}/results", h.handleResults)
		r.Get("/api/exams", h.handleListMyExams)

		r.Get("/api/tasks/{taskID}/feedback", h.handleListTaskFeedback)
		r.Post("/api/tasks/{taskID}/feedback", h.handleCreateTaskFeedback)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleAdminListUsers)
			r.Post("/api/admin/users", h.handleAdminCreateUser)
			r.Post("/api/admin/users/{userID}/toggle", h.handleAdminToggleUser)
			r.Get("/api/admin/exams", h.handleAdminListExams)
		})
	})
}

// autoSubmit runs when a session's timer expires. The drafts captured
// at expiry go through the regular submission protocol on behalf of the
// exam's owner.
func (h *Handler) autoSubmit(examID string, drafts [model.TaskCount]model.TaskDraft) {
	ex, err := h.store.GetExam(examID)
	if err != nil {
		slog.Error("auto-submit: load exam", "exam_id", examID, "error", err)
		return
	}
	if ex == nil {
		slog.Warn("auto-submit: exam vanished", "exam_id", examID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := h.exams.Submit(ctx, ex.UserID, examID, drafts[:]); err != nil {
		// Conflict means the user submitted in the race window; fine.
		if !errors.Is(err, exam.ErrConflict) {
			slog.Error("auto-submit failed", "exam_id", examID, "error", err)
		}
	}
}
