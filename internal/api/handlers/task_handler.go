package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/tasks-be/internal/audit"
	"github.com/isdelr/tasks-be/internal/auth"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/isdelr/tasks-be/internal/services"
)

// TaskHandler handles HTTP requests for a user's tasks. Routes are mounted
// behind Authenticate and RequireOwner, so the subject is the owner.
type TaskHandler struct {
	service  services.TaskServiceProvider
	recorder *audit.Recorder
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider, recorder *audit.Recorder) *TaskHandler {
	return &TaskHandler{service: service, recorder: recorder}
}

func owner(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (h *TaskHandler) access(r *http.Request, resource, action string, err error) {
	h.recorder.DataAccess(owner(r), resource, action, err == nil)
}

// List returns every task of the owner.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context(), owner(r))
	h.access(r, "tasks", "list", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create adds a task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload models.TaskCreate
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.Create(r.Context(), owner(r), payload)
	h.access(r, "tasks", "create", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Get returns one task.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	task, err := h.service.Get(r.Context(), owner(r), id)
	h.access(r, "task:"+id, "read", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update applies a partial update.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	var payload models.TaskUpdate
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.Update(r.Context(), owner(r), id, payload)
	h.access(r, "task:"+id, "update", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	err := h.service.Delete(r.Context(), owner(r), id)
	h.access(r, "task:"+id, "delete", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

// ToggleComplete flips the completed flag.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	task, err := h.service.ToggleCompletion(r.Context(), owner(r), id)
	h.access(r, "task:"+id, "toggle", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
