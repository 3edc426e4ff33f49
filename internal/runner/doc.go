// Package runner выполняет сохранённые tasks по одной, в порядке FIFO.
//
// # Жизненный цикл
//
//	stopped ──Start──▶ polling ◀──▶ executing
//	   ▲                  │
//	   └──────Stop────────┘
//
// Start и Stop идемпотентны. Stop отменяет тикер и ждёт, пока текущая
// task будет обработана до конца (вызов executor'а, запись в хранилище,
// событие); новая task после Stop не берётся.
//
// # Poll-цикл
//
// Каждые PollInterval, сразу после Start и по Wake:
//
//  1. FetchNextPending — самая старая task с ScheduledAt <= now
//  2. Executor.Execute(task.Payload)
//  3. Классификация результата и действие по ней
//
// Результаты и действия:
//
//	2xx                                  → Delete, finished_with_success
//	нет ответа, 5xx, 408, 429            → Update (Attempts+1), finished_with_retry
//	прочие статусы, невалидный запрос    → Delete, finished_with_no_retry
//	retryable и Attempts+1 >= MaxAttempts → Delete, finished_with_no_retry (attempts_exhausted)
//
// Пока голова очереди получает retryable ошибки, следующие tasks ждут:
// порядок доставки сохраняется. Backoff между попытками — только
// PollInterval.
//
// # Ошибки хранилища
//
// Ошибки на шаге 3 публикуются с причиной persistence, запись остаётся
// для следующего цикла. Ошибка FetchNextPending только логируется:
// события без task не бывает.
package runner
