package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/clock"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/transport"
)

// State — состояние Runner.
type State string

const (
	StateStopped   State = "stopped"
	StatePolling   State = "polling"
	StateExecuting State = "executing"
)

// Store — операции хранилища, нужные Runner.
type Store interface {
	FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier публикует результаты выполнения.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Config — конфигурация Runner.
type Config struct {
	// Store — хранилище tasks. Обязательно.
	Store Store

	// Executor — выполняет сетевой вызов. Обязательно.
	Executor transport.Executor

	// Notifier — получатель событий. Опционально.
	Notifier Notifier

	// PollInterval — интервал между poll-циклами. Обязательно, > 0.
	PollInterval time.Duration

	// MaxAttempts — после стольких retryable неудач task удаляется
	// с событием finished_with_no_retry. 0 — без ограничения.
	MaxAttempts int

	Clock   clock.Clock        // default: clock.System
	Logger  *slog.Logger       // default: slog.Default()
	Metrics *telemetry.Metrics // опционально
}

// Status — снимок состояния Runner.
type Status struct {
	State State

	// TaskID — выполняемая task (только в состоянии executing).
	TaskID *uuid.UUID

	PollInterval time.Duration
	MaxAttempts  int
}

// Runner последовательно выполняет tasks из хранилища.
//
// Одна горутина опрашивает хранилище каждые PollInterval (и сразу
// после Start или Wake), берёт самую старую task, выполняет её через
// Executor и по результату удаляет или обновляет запись, публикуя событие.
// Следующая task не берётся, пока текущая не обработана полностью.
type Runner struct {
	store        Store
	executor     transport.Executor
	notifier     Notifier
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	pollInterval time.Duration
	maxAttempts  int

	// Lifecycle
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	// activity — состояние и выполняемая task, меняются вместе
	activity atomic.Pointer[activity]
	wake     chan struct{}
}

type activity struct {
	state  State
	taskID *uuid.UUID
}

// New создаёт Runner в состоянии stopped.
func New(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("%w: executor is required", ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfig, cfg.PollInterval)
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts must not be negative, got %d", ErrInvalidConfig, cfg.MaxAttempts)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		store:        cfg.Store,
		executor:     cfg.Executor,
		notifier:     cfg.Notifier,
		clock:        clk,
		logger:       telemetry.WithComponent(logger, "runner"),
		metrics:      cfg.Metrics,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		wake:         make(chan struct{}, 1),
	}
	r.setActivity(StateStopped, nil)
	return r, nil
}

// Start запускает poll-цикл. Повторный вызов на работающем Runner ничего не делает.
//
// Отмена ctx останавливает цикл так же, как Stop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		select {
		case <-r.done:
			// Цикл завершился из-за отмены родительского ctx
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel
	r.done = make(chan struct{})
	r.setActivity(StatePolling, nil)

	r.logger.Info("starting runner",
		"poll_interval", r.pollInterval,
		"max_attempts", r.maxAttempts,
	)

	go r.pollLoop(ctx, r.done)
}

// Stop останавливает poll-цикл и ждёт завершения текущего выполнения.
// Выполнение не прерывается. Повторный вызов ничего не делает.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return
	}

	r.logger.Info("stopping runner...")

	r.cancelFunc()
	<-r.done

	r.cancelFunc = nil
	r.done = nil

	r.logger.Info("runner stopped")
}

// Wake запускает внеочередной poll-цикл, не дожидаясь тика.
// Не блокируется; несколько вызовов подряд схлопываются в один цикл.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// State возвращает текущее состояние.
func (r *Runner) State() State {
	return r.activity.Load().state
}

// Status возвращает снимок состояния.
func (r *Runner) Status() Status {
	a := r.activity.Load()
	st := Status{
		State:        a.state,
		PollInterval: r.pollInterval,
		MaxAttempts:  r.maxAttempts,
	}
	if a.taskID != nil {
		taskID := *a.taskID
		st.TaskID = &taskID
	}
	return st
}

func (r *Runner) setActivity(state State, taskID *uuid.UUID) {
	r.activity.Store(&activity{state: state, taskID: taskID})
}

// pollLoop — основной цикл. Единственная горутина, обращающаяся к Store и Executor.
func (r *Runner) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.setActivity(StateStopped, nil)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем tasks, сохранённые до запуска)
	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		case <-r.wake:
			r.poll(ctx)
		}
	}
}

// poll выполняет один цикл: fetch → execute → classify → act.
func (r *Runner) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	task, err := r.store.FetchNextPending(ctx, r.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.metrics.ObservePollError()
		r.logger.Error("failed to fetch next task", "error", err)
		return
	}

	// Stop вызван во время fetch: новое выполнение не начинаем
	if ctx.Err() != nil {
		return
	}

	// Выполнение и обработка результата не прерываются при Stop
	r.process(context.WithoutCancel(ctx), task)
}

// process выполняет task и применяет результат к хранилищу.
func (r *Runner) process(ctx context.Context, task *domain.Task) {
	id := task.ID
	r.setActivity(StateExecuting, &id)
	r.metrics.SetExecuting(true)
	defer func() {
		r.setActivity(StatePolling, nil)
		r.metrics.SetExecuting(false)
	}()

	logger := telemetry.WithTaskID(r.logger, task.ID.String())
	logger.Debug("executing task",
		"name", task.Payload.Name,
		"attempts", task.Attempts,
	)

	start := time.Now()
	resp, err := r.execute(ctx, task, logger)
	r.metrics.ObserveExecution(time.Since(start))

	out := classify(resp, err)

	switch out.class {
	case classSuccess:
		r.finish(ctx, task, task, domain.EventTaskFinishedWithSuccess, nil, logger)

	case classRetryable:
		if r.maxAttempts > 0 && task.Attempts+1 >= r.maxAttempts {
			abandoned := *task
			abandoned.RecordFailure(out.err.Error(), r.clock.Now())
			r.finish(ctx, task, &abandoned, domain.EventTaskFinishedWithNoRetry, &domain.TaskError{
				Reason:     domain.ErrorReasonAttemptsExhausted,
				StatusCode: out.err.StatusCode,
				Message:    out.err.Error(),
			}, logger)
			return
		}
		r.retry(ctx, task, out.err, logger)

	default:
		r.finish(ctx, task, task, domain.EventTaskFinishedWithNoRetry, out.err, logger)
	}
}

// execute вызывает executor, превращая панику в ошибку соединения.
func (r *Runner) execute(ctx context.Context, task *domain.Task, logger *slog.Logger) (resp *transport.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("executor panicked", "panic", p)
			resp = nil
			err = &transport.Error{
				Kind: transport.KindConnectivity,
				Err:  fmt.Errorf("%w: %v", ErrExecutorPanic, p),
			}
		}
	}()

	return r.executor.Execute(ctx, task.Payload)
}

// finish удаляет task с терминальным результатом и публикует событие.
// stored — запись в том виде, в каком она лежит в хранилище;
// task — она же с учётом последней попытки, для терминального события.
//
// Если удалить запись не удалось, она остаётся в хранилище и будет
// выполнена повторно: публикуется finished_with_retry с причиной persistence
// и сохранённым счётчиком попыток.
func (r *Runner) finish(ctx context.Context, stored, task *domain.Task, kind domain.EventKind, taskErr *domain.TaskError, logger *slog.Logger) {
	err := r.store.Delete(ctx, task.ID)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		// Запись удалили извне, пока шло выполнение
		logger.Warn("task already deleted", "kind", kind)
	default:
		logger.Error("failed to delete task", "kind", kind, "error", err)
		r.publish(ctx, domain.NewEvent(domain.EventTaskFinishedWithRetry, stored, persistence(err), r.clock.Now()), logger)
		return
	}

	if taskErr != nil {
		logger.Warn("task abandoned",
			"attempts", task.Attempts,
			"reason", taskErr.Reason,
			"status_code", taskErr.StatusCode,
			"error", taskErr.Message,
		)
	} else {
		logger.Info("task delivered", "attempts", task.Attempts)
	}

	r.publish(ctx, domain.NewEvent(kind, task, taskErr, r.clock.Now()), logger)
}

// retry фиксирует неудачную попытку. Task остаётся в голове очереди.
func (r *Runner) retry(ctx context.Context, task *domain.Task, taskErr *domain.TaskError, logger *slog.Logger) {
	now := r.clock.Now()

	updated := *task
	updated.RecordFailure(taskErr.Error(), now)

	err := r.store.Update(ctx, &updated)
	switch {
	case err == nil:
		logger.Warn("task failed, will retry",
			"attempts", updated.Attempts,
			"reason", taskErr.Reason,
			"status_code", taskErr.StatusCode,
			"error", taskErr.Message,
		)
		r.publish(ctx, domain.NewEvent(domain.EventTaskFinishedWithRetry, &updated, taskErr, now), logger)

	case errors.Is(err, repo.ErrNotFound):
		// Запись удалили извне: повторять нечего
		logger.Warn("task deleted during execution", "error", err)
		r.publish(ctx, domain.NewEvent(domain.EventTaskFinishedWithNoRetry, task, persistence(err), now), logger)

	default:
		logger.Error("failed to record attempt", "error", err)
		r.publish(ctx, domain.NewEvent(domain.EventTaskFinishedWithRetry, task, persistence(err), now), logger)
	}
}

func (r *Runner) publish(ctx context.Context, ev domain.Event, logger *slog.Logger) {
	reason := ""
	if ev.Error != nil {
		reason = string(ev.Error.Reason)
	}
	r.metrics.ObserveOutcome(string(ev.Kind), reason)

	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish event", "kind", ev.Kind, "error", err)
	}
}

func persistence(err error) *domain.TaskError {
	return &domain.TaskError{Reason: domain.ErrorReasonPersistence, Message: err.Error()}
}
