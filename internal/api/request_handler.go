package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Relay/internal/telemetry"
)

// maxRequestBody — предельный размер тела POST /requests.
const maxRequestBody = 1 << 20

// ScheduleRequest обрабатывает POST /api/v1/requests.
func (h *Handler) ScheduleRequest(w http.ResponseWriter, r *http.Request) {
	logger := telemetry.FromContext(r.Context())

	var req ScheduleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			TooLarge(w, "request body too large")
			return
		}
		BadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	id, err := h.scheduler.Schedule(r.Context(), req.ToDomain())
	if HandleRepoError(w, logger, err, "") {
		return
	}

	Created(w, ScheduleResponse{TaskID: id})
}
