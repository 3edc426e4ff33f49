package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(h.logger),
		Recovery(),
		Logging(),
	)

	// Requests
	mux.Handle("POST /api/v1/requests", chain(http.HandlerFunc(h.ScheduleRequest)))

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("DELETE /api/v1/tasks", chain(http.HandlerFunc(h.PurgeTasks)))
	mux.Handle("DELETE /api/v1/tasks/{id}", chain(http.HandlerFunc(h.DeleteTask)))

	// Runner
	mux.Handle("GET /api/v1/runner", chain(http.HandlerFunc(h.GetRunner)))
	mux.Handle("POST /api/v1/runner/start", chain(http.HandlerFunc(h.StartRunner)))
	mux.Handle("POST /api/v1/runner/stop", chain(http.HandlerFunc(h.StopRunner)))
}
