// Package transport выполняет сетевые вызовы для tasks.
//
// # Обзор
//
// Runner не знает, как устроен сетевой вызов: он вызывает Executor и
// получает либо Response (сервер ответил, с любым статусом), либо
// *Error (ответа нет). Решение о retry принимает runner по этим данным.
//
// # Ключевые компоненты
//
// ## Executor
//
// Интерфейс одного вызова:
//
//	resp, err := executor.Execute(ctx, task.Payload)
//
// ExecutorFunc позволяет подставить функцию вместо реализации (тесты).
//
// ## HTTPExecutor
//
// Реализация поверх net/http:
//   - URL = Endpoint + Path
//   - заголовки из APIRequest.Headers, Api-Key и Authorization: Bearer
//   - Content-Type: application/json для запросов с body
//   - таймаут из Config.Timeout (default: 30s)
//
// # Ошибки
//
//   - *Error{Kind: connectivity} — соединение не установлено или оборвано
//   - *Error{Kind: timeout} — ответ не получен за отведённое время
//   - ErrInvalidRequest — запрос невозможно построить (нет endpoint и т.п.)
package transport
