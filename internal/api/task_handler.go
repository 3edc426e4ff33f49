package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ListTasks обрабатывает GET /api/v1/tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListAll(r.Context())
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	List(w, TasksFromDomain(tasks), len(tasks))
}

// DeleteTask обрабатывает DELETE /api/v1/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task ID")
		return
	}

	err = h.tasks.Delete(r.Context(), id)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "task not found") {
		return
	}

	NoContent(w)
}

// PurgeTasks обрабатывает DELETE /api/v1/tasks.
func (h *Handler) PurgeTasks(w http.ResponseWriter, r *http.Request) {
	err := h.tasks.DeleteAll(r.Context())
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	NoContent(w)
}
