package api

import (
	"net/http"

	"github.com/shaiso/Relay/internal/telemetry"
)

// GetRunner обрабатывает GET /api/v1/runner.
func (h *Handler) GetRunner(w http.ResponseWriter, r *http.Request) {
	Success(w, RunnerFromStatus(h.runner.Status()))
}

// StartRunner обрабатывает POST /api/v1/runner/start.
// Повторный Start для работающего runner ничего не делает.
func (h *Handler) StartRunner(w http.ResponseWriter, r *http.Request) {
	h.runner.Start(h.baseCtx)
	telemetry.FromContext(r.Context()).Info("runner started via api")

	Success(w, RunnerFromStatus(h.runner.Status()))
}

// StopRunner обрабатывает POST /api/v1/runner/stop.
// Ответ отправляется после завершения выполняемой task.
func (h *Handler) StopRunner(w http.ResponseWriter, r *http.Request) {
	h.runner.Stop()
	telemetry.FromContext(r.Context()).Info("runner stopped via api")

	Success(w, RunnerFromStatus(h.runner.Status()))
}
