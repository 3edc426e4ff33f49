package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — запись об отложенном исходящем API-запросе.
//
// Task создаётся Scheduler'ом и живёт в хранилище до тех пор,
// пока Runner не получит терминальный результат (успех или
// non-retryable ошибку) и не удалит её.
//
// После создания изменяется только Runner'ом и только поля
// Attempts, LastAttemptAt, LastError. Payload неизменяем.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// Payload — исходящий запрос (endpoint, auth, body).
	Payload APIRequest `json:"payload"`

	// CreatedAt — время создания. Единственный ключ сортировки (FIFO).
	CreatedAt time.Time `json:"created_at"`

	// Seq — порядковый номер вставки, назначается хранилищем.
	// Разрешает равенство CreatedAt в порядке вставки.
	Seq int64 `json:"seq"`

	// ScheduledAt — task не выбирается для выполнения раньше этого времени.
	ScheduledAt time.Time `json:"scheduled_at"`

	// Attempts — количество неудачных retryable попыток (начиная с 0).
	Attempts int `json:"attempts"`

	// LastAttemptAt — время последней неудачной попытки.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// LastError — текст последней retryable ошибки.
	LastError string `json:"last_error,omitempty"`
}

// NewTask создаёт task для запроса с нулевым счётчиком попыток.
func NewTask(req APIRequest, now time.Time) *Task {
	return &Task{
		ID:          uuid.New(),
		Payload:     req,
		CreatedAt:   now,
		ScheduledAt: now,
	}
}

// IsEligible возвращает true, если task можно выполнять в момент now.
func (t *Task) IsEligible(now time.Time) bool {
	return !t.ScheduledAt.After(now)
}

// RecordFailure фиксирует неудачную retryable попытку.
func (t *Task) RecordFailure(errMsg string, at time.Time) {
	t.Attempts++
	t.LastAttemptAt = &at
	t.LastError = errMsg
}

// Before реализует FIFO порядок: сначала CreatedAt, затем Seq.
func (t *Task) Before(other *Task) bool {
	if t.CreatedAt.Equal(other.CreatedAt) {
		return t.Seq < other.Seq
	}
	return t.CreatedAt.Before(other.CreatedAt)
}
