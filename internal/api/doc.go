// Package api содержит HTTP API сервер relay-server.
//
// Структура:
//   - handler.go         — Handler с DI (scheduler, хранилище, runner, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (request id, logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - request_handler.go — приём запросов в очередь
//   - task_handler.go    — просмотр и удаление tasks
//   - runner_handler.go  — управление runner
//
// Ответы: {"data": ...} при успехе, {"error": {"code", "message"}} при ошибке.
package api
