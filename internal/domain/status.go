package domain

// EventKind — тип события о task.
//
// Жизненный цикл:
//
//	scheduled → finished_with_retry (0..N раз) → finished_with_success
//	                                           ↘ finished_with_no_retry
type EventKind string

const (
	// EventTaskScheduled — task сохранена и ждёт выполнения.
	EventTaskScheduled EventKind = "task.scheduled"

	// EventTaskFinishedWithSuccess — запрос доставлен, task удалена.
	EventTaskFinishedWithSuccess EventKind = "task.finished_with_success"

	// EventTaskFinishedWithRetry — retryable ошибка, task осталась в очереди.
	EventTaskFinishedWithRetry EventKind = "task.finished_with_retry"

	// EventTaskFinishedWithNoRetry — запрос отклонён окончательно, task удалена.
	EventTaskFinishedWithNoRetry EventKind = "task.finished_with_no_retry"
)

// IsTerminal возвращает true, если после события task больше не выполняется.
func (k EventKind) IsTerminal() bool {
	switch k {
	case EventTaskFinishedWithSuccess, EventTaskFinishedWithNoRetry:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что kind известен.
func (k EventKind) IsValid() bool {
	switch k {
	case EventTaskScheduled, EventTaskFinishedWithSuccess,
		EventTaskFinishedWithRetry, EventTaskFinishedWithNoRetry:
		return true
	default:
		return false
	}
}

// ErrorReason — категория ошибки выполнения task.
type ErrorReason string

const (
	// ErrorReasonConnectivity — нет ответа: сеть недоступна, соединение сброшено.
	ErrorReasonConnectivity ErrorReason = "connectivity"

	// ErrorReasonTimeout — сервер не ответил вовремя.
	ErrorReasonTimeout ErrorReason = "timeout"

	// ErrorReasonServer — сервер вернул 5xx (или 408/429).
	ErrorReasonServer ErrorReason = "server"

	// ErrorReasonClient — сервер отклонил запрос (4xx).
	ErrorReasonClient ErrorReason = "client"

	// ErrorReasonAttemptsExhausted — retryable ошибка после MaxAttempts попыток.
	ErrorReasonAttemptsExhausted ErrorReason = "attempts_exhausted"

	// ErrorReasonPersistence — не удалось обновить или удалить запись в хранилище.
	ErrorReasonPersistence ErrorReason = "persistence"
)
