// Package telemetry обеспечивает наблюдаемость Relay.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики scheduler и runner
//
// Все процессы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
