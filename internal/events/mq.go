package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
)

// EventPublisher — часть mq.Publisher, нужная MQNotifier.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev domain.Event) error
}

// MQNotifier публикует события в RabbitMQ.
type MQNotifier struct {
	publisher EventPublisher
}

// NewMQNotifier создаёт MQNotifier поверх publisher.
func NewMQNotifier(publisher EventPublisher) *MQNotifier {
	return &MQNotifier{publisher: publisher}
}

// Publish реализует Notifier.
func (n *MQNotifier) Publish(ctx context.Context, ev domain.Event) error {
	if err := n.publisher.PublishEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish %s for task %s: %w", ev.Kind, ev.TaskID, err)
	}
	return nil
}

// Bridge переносит события из очереди RabbitMQ в локальный Notifier.
type Bridge struct {
	target Notifier
	logger *slog.Logger
}

// NewBridge создаёт Bridge.
func NewBridge(target Notifier, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{target: target, logger: logger}
}

// Handle реализует mq.Handler.
//
// Сообщение, которое не удаётся разобрать, возвращается с mq.ErrDiscard
// и уходит в DLQ без повторной доставки.
func (b *Bridge) Handle(ctx context.Context, d *mq.Delivery) error {
	ev, err := mq.ParsePayload[domain.Event](&d.Message)
	if err == nil && !ev.Kind.IsValid() {
		err = fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	if err != nil {
		b.logger.Warn("dropping malformed event message",
			"message_id", d.Message.ID,
			"type", d.Message.Type,
			"error", err,
		)
		return fmt.Errorf("%w: %v", mq.ErrDiscard, err)
	}

	return b.target.Publish(ctx, ev)
}
