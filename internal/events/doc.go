// Package events доставляет уведомления о результатах tasks.
//
// # Обзор
//
// Runner и Scheduler публикуют domain.Event через интерфейс Notifier
// и не знают, кто их получает. Реализации:
//
//   - Bus — in-process pub/sub с типизированными подписками
//   - MQNotifier — публикация в RabbitMQ (exchange relay.events)
//   - Fanout — рассылка одного события нескольким Notifier
//
// Bridge выполняет обратное преобразование: сообщения из очереди
// RabbitMQ публикуются в локальный Bus (используется relay-watcher).
//
// # Bus
//
//	bus := events.NewBus(logger)
//	unsubscribe := bus.Subscribe(domain.EventTaskFinishedWithSuccess, func(ev domain.Event) {
//	    ...
//	})
//	defer unsubscribe()
//
// Обработчики вызываются синхронно в горутине публикующего в порядке
// подписки. Каждый подписчик получает каждое событие ровно один раз.
// Паника в обработчике перехватывается и логируется.
package events
