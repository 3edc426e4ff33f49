package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/runner"
)

// Request DTOs

// ScheduleRequest — запрос на постановку исходящего запроса в очередь.
type ScheduleRequest struct {
	Name     string            `json:"name,omitempty"`
	Endpoint string            `json:"endpoint"`
	Path     string            `json:"path"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	APIKey   string            `json:"api_key,omitempty"`
	Auth     AuthRequest       `json:"auth"`
	Body     json.RawMessage   `json:"body,omitempty"`
}

// AuthRequest — контекст пользователя запроса.
type AuthRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate проверяет запрос до постановки в очередь.
func (r ScheduleRequest) Validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL")
	}
	if r.Method != "" && !allowedMethods[strings.ToUpper(r.Method)] {
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	return nil
}

// ToDomain конвертирует ScheduleRequest в domain.APIRequest.
func (r ScheduleRequest) ToDomain() domain.APIRequest {
	req := domain.APIRequest{
		Name:     r.Name,
		Endpoint: r.Endpoint,
		Path:     r.Path,
		Method:   strings.ToUpper(r.Method),
		Headers:  r.Headers,
		APIKey:   r.APIKey,
		Auth: domain.Auth{
			UserID:    r.Auth.UserID,
			Email:     r.Auth.Email,
			AuthToken: r.Auth.AuthToken,
		},
	}
	if len(r.Body) > 0 && string(r.Body) != "null" {
		req.Body = r.Body
	}
	return req
}

// ScheduleResponse — ответ на постановку в очередь.
type ScheduleResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// Task DTOs

// TaskResponse — ответ с task. Секреты (api_key, auth_token) не отдаются.
type TaskResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name,omitempty"`
	Endpoint      string     `json:"endpoint"`
	Path          string     `json:"path"`
	Method        string     `json:"method"`
	UserID        string     `json:"user_id,omitempty"`
	Email         string     `json:"email,omitempty"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		Name:          t.Payload.Name,
		Endpoint:      t.Payload.Endpoint,
		Path:          t.Payload.Path,
		Method:        t.Payload.HTTPMethod(),
		UserID:        t.Payload.Auth.UserID,
		Email:         t.Payload.Auth.Email,
		Attempts:      t.Attempts,
		CreatedAt:     t.CreatedAt,
		ScheduledAt:   t.ScheduledAt,
		LastAttemptAt: t.LastAttemptAt,
		LastError:     t.LastError,
	}
}

// TasksFromDomain конвертирует слайс tasks.
func TasksFromDomain(tasks []domain.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}
	return result
}

// Runner DTOs

// RunnerResponse — ответ с состоянием runner.
type RunnerResponse struct {
	State        string     `json:"state"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	PollInterval string     `json:"poll_interval"`
	MaxAttempts  int        `json:"max_attempts"`
}

// RunnerFromStatus конвертирует runner.Status в RunnerResponse.
func RunnerFromStatus(s runner.Status) RunnerResponse {
	return RunnerResponse{
		State:        string(s.State),
		TaskID:       s.TaskID,
		PollInterval: s.PollInterval.String(),
		MaxAttempts:  s.MaxAttempts,
	}
}
