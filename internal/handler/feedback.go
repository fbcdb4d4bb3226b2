package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tcfwrite/internal/model"
)

type createFeedbackRequest struct {
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

func (h *Handler) handleListTaskFeedback(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.store.GetTask(taskID)
	if err != nil {
		slog.Error("failed to load task", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if task == nil {
		writeError(w, r, http.StatusNotFound, "ErrTaskNotFound")
		return
	}

	feedbacks, err := h.store.ListFeedbackForTask(taskID)
	if err != nil {
		slog.Error("failed to list feedback", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedbacks": feedbacks})
}

func (h *Handler) handleCreateTaskFeedback(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req createFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" || req.Rating < 1 || req.Rating > 5 {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest")
		return
	}

	task, err := h.store.GetTask(taskID)
	if err != nil {
		slog.Error("failed to load task", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if task == nil {
		writeError(w, r, http.StatusNotFound, "ErrTaskNotFound")
		return
	}

	id, err := h.store.InsertFeedback(model.PeerFeedback{
		TaskID:   taskID,
		AuthorID: user.ID,
		Comment:  req.Comment,
		Rating:   req.Rating,
	})
	if err != nil {
		slog.Error("failed to insert feedback", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      id,
	})
}
