package events

import (
	"context"
	"errors"

	"github.com/shaiso/Relay/internal/domain"
)

// Notifier публикует события о tasks.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Fanout рассылает событие всем Notifier по порядку.
// Ошибка одного получателя не мешает доставке остальным.
type Fanout []Notifier

// NewFanout создаёт Fanout, пропуская nil.
func NewFanout(notifiers ...Notifier) Fanout {
	f := make(Fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			f = append(f, n)
		}
	}
	return f
}

// Publish реализует Notifier.
func (f Fanout) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
