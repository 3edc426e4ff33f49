// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Через RabbitMQ события о tasks уходят за пределы процесса relay-server:
// их получает relay-watcher и любые другие подписчики.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление сообщений из очередей
//
// Routing keys совпадают с domain.EventKind:
//   - task.scheduled
//   - task.finished_with_success
//   - task.finished_with_retry
//   - task.finished_with_no_retry
//
// Exchanges:
//   - relay.events — topic, все события tasks
//   - relay.dlq    — dead letter queue
package mq
