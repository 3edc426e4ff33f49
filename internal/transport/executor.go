package transport

import (
	"context"
	"net/http"

	"github.com/shaiso/Relay/internal/domain"
)

// Executor выполняет один сетевой вызов.
//
// Ответ с любым HTTP-статусом возвращается как Response с nil error.
// Ошибка возвращается, только если ответа нет: *Error или ErrInvalidRequest.
type Executor interface {
	Execute(ctx context.Context, req domain.APIRequest) (*Response, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, req domain.APIRequest) (*Response, error)

// Execute вызывает f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req domain.APIRequest) (*Response, error) {
	return f(ctx, req)
}

// Response — ответ сервера.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess — статус 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Message возвращает краткое описание ответа для логов и событий.
func (r *Response) Message() string {
	text := http.StatusText(r.StatusCode)
	if len(r.Body) == 0 {
		return text
	}
	return truncate(string(r.Body), 200)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
