package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event — уведомление о результате обработки task.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// Kind — тип события.
	Kind EventKind `json:"kind"`

	// TaskID — task, к которой относится событие.
	TaskID uuid.UUID `json:"task_id"`

	// Name — копия APIRequest.Name для удобства подписчиков.
	Name string `json:"name,omitempty"`

	// Attempts — значение счётчика попыток после обработки.
	Attempts int `json:"attempts"`

	// Error — заполняется для finished_with_retry и finished_with_no_retry.
	Error *TaskError `json:"error,omitempty"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent создаёт событие для task.
func NewEvent(kind EventKind, task *Task, taskErr *TaskError, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		TaskID:    task.ID,
		Name:      task.Payload.Name,
		Attempts:  task.Attempts,
		Error:     taskErr,
		Timestamp: at,
	}
}

// TaskError — описание ошибки выполнения, передаваемое в событиях.
type TaskError struct {
	// Reason — категория ошибки.
	Reason ErrorReason `json:"reason"`

	// StatusCode — HTTP-код ответа (0, если ответа не было).
	StatusCode int `json:"status_code,omitempty"`

	// Message — текст ошибки.
	Message string `json:"message"`
}

// Error реализует интерфейс error.
func (e *TaskError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Reason, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}
