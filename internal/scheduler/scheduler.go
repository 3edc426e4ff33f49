package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/clock"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ErrInvalidConfig — Scheduler нельзя создать с такой конфигурацией.
var ErrInvalidConfig = errors.New("invalid scheduler config")

// Store — операции хранилища, нужные Scheduler.
type Store interface {
	Create(ctx context.Context, task *domain.Task) error
}

// Notifier публикует событие task.scheduled.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Scheduler принимает запросы и сохраняет их как tasks.
type Scheduler struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Config — конфигурация Scheduler.
type Config struct {
	Store    Store              // обязательно
	Notifier Notifier           // опционально
	Clock    clock.Clock        // default: clock.System
	Logger   *slog.Logger       // default: slog.Default()
	Metrics  *telemetry.Metrics // опционально
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		clock:    clk,
		logger:   telemetry.WithComponent(logger, "scheduler"),
		metrics:  cfg.Metrics,
	}, nil
}

// Schedule сохраняет запрос как новую task и возвращает её ID.
//
// Возвращается только после того, как запись сохранена. При ошибке
// хранилища возвращает *repo.PersistenceError и uuid.Nil; запись
// не создаётся.
//
// После сохранения публикует task.scheduled. Ошибка публикации не
// фатальна: runner заберёт task на очередном poll.
func (s *Scheduler) Schedule(ctx context.Context, req domain.APIRequest) (uuid.UUID, error) {
	now := s.clock.Now()
	task := domain.NewTask(req, now)

	if err := s.store.Create(ctx, task); err != nil {
		s.metrics.ObserveScheduleFailure()
		s.logger.Error("failed to schedule task",
			"name", req.Name,
			"error", err,
		)
		return uuid.Nil, repo.AsPersistenceError("create", err)
	}

	s.metrics.ObserveScheduled()
	s.logger.Info("task scheduled",
		"task_id", task.ID,
		"name", req.Name,
		"endpoint", req.Endpoint,
		"path", req.Path,
	)

	if s.notifier != nil {
		ev := domain.NewEvent(domain.EventTaskScheduled, task, nil, now)
		if err := s.notifier.Publish(ctx, ev); err != nil {
			s.logger.Warn("failed to publish task.scheduled",
				"task_id", task.ID,
				"error", err,
			)
		}
	}

	return task.ID, nil
}
