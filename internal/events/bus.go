package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
)

// Handler — обработчик события.
type Handler func(ev domain.Event)

type subscription struct {
	id      uint64
	kind    domain.EventKind // пустой — все события
	handler Handler
}

// Bus — in-process шина событий.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus создаёт пустую шину.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe подписывает handler на события kind.
// Возвращаемая функция отменяет подписку; повторный вызов безопасен.
func (b *Bus) Subscribe(kind domain.EventKind, handler Handler) (unsubscribe func()) {
	return b.add(kind, handler)
}

// SubscribeAll подписывает handler на все события.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	return b.add("", handler)
}

// Stream возвращает канал со всеми событиями, опубликованными после вызова.
// Канал закрывается после отмены ctx. Пока канал заполнен, Publish
// ждёт читателя, поэтому канал нужно вычитывать.
func (b *Bus) Stream(ctx context.Context, buffer int) <-chan domain.Event {
	ch := make(chan domain.Event, buffer)

	var (
		mu     sync.Mutex
		closed bool
	)

	unsubscribe := b.SubscribeAll(func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()

		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

// Publish доставляет событие подписчикам.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) error {
	if !ev.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == ev.Kind {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, ev)
	}
	return nil
}

// Len возвращает количество активных подписок.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) add(kind domain.EventKind, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) deliver(s subscription, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"kind", ev.Kind,
				"task_id", ev.TaskID,
				"panic", r,
			)
		}
	}()
	s.handler(ev)
}

// LogHandler возвращает обработчик, который пишет события в лог.
func LogHandler(logger *slog.Logger) Handler {
	return func(ev domain.Event) {
		attrs := []any{
			"event_id", ev.ID,
			"kind", ev.Kind,
			"task_id", ev.TaskID,
			"name", ev.Name,
			"attempts", ev.Attempts,
		}
		if ev.Error != nil {
			attrs = append(attrs,
				"reason", ev.Error.Reason,
				"status_code", ev.Error.StatusCode,
				"error", ev.Error.Message,
			)
		}

		level := slog.LevelInfo
		if ev.Kind == domain.EventTaskFinishedWithNoRetry {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "task event", attrs...)
	}
}
