// Package scheduler принимает исходящие API-запросы в очередь.
//
// Schedule синхронно сохраняет запрос как domain.Task и возвращает её ID.
// Выполнением занимается runner: Scheduler только создаёт записи и
// сообщает о них событием task.scheduled.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Store:    store,
//	    Notifier: bus,     // опционально
//	    Logger:   logger,
//	})
//
//	taskID, err := sched.Schedule(ctx, domain.APIRequest{
//	    Name:     "track_event",
//	    Endpoint: "https://api.example.com",
//	    Path:     "/api/events/track",
//	    Body:     body,
//	})
//
// Ошибка Schedule всегда *repo.PersistenceError: запрос не сохранён,
// повторять его или нет решает вызывающая сторона.
package scheduler
